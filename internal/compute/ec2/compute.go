// Package ec2 launches and controls desktop instances on Amazon EC2.
package ec2

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/smartpc/smartpc/internal/cloud"
	"github.com/smartpc/smartpc/internal/instrument"
	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/retry"
	"github.com/smartpc/smartpc/pkg/types"
)

// Component is the dependency name reported to metrics and health.
const Component = "compute"

// Config configures the EC2 provider.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	// SecurityGroupIDs are attached to every launched instance.
	SecurityGroupIDs []string

	// RootDeviceName receives the requested storage size.
	RootDeviceName string

	Retry retry.Config
}

// Provider implements types.Compute.
type Provider struct {
	mu      sync.Mutex
	awsCfg  aws.Config
	config  Config
	clients map[string]*ec2.Client
	obs     *instrument.Observer
	logger  *slog.Logger
}

var _ types.Compute = (*Provider)(nil)

// NewProvider loads the AWS configuration once; regional clients are created lazily.
func NewProvider(ctx context.Context, cfg Config, metrics types.MetricsCollector, tracker *health.Tracker) (*Provider, error) {
	if cfg.RootDeviceName == "" {
		cfg.RootDeviceName = "/dev/sda1"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	awsCfg, err := cloud.LoadConfig(ctx, cloud.Settings{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}

	return &Provider{
		awsCfg:  awsCfg,
		config:  cfg,
		clients: make(map[string]*ec2.Client),
		obs:     instrument.New(Component, cfg.Retry, metrics, tracker),
		logger:  slog.Default().With("component", "ec2"),
	}, nil
}

func (p *Provider) client(region string) *ec2.Client {
	if region == "" {
		region = p.config.Region
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[region]; ok {
		return c
	}
	c := ec2.NewFromConfig(p.awsCfg, func(o *ec2.Options) {
		o.Region = region
		if p.config.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.config.Endpoint)
		}
	})
	p.clients[region] = c
	return c
}

// RunInstance launches one instance tagged with its name and owner.
func (p *Provider) RunInstance(ctx context.Context, region string, spec types.LaunchSpec) (*types.LaunchResult, error) {
	input := &ec2.RunInstancesInput{
		ImageId:           aws.String(spec.AmiID),
		InstanceType:      ec2types.InstanceType(spec.InstanceType),
		MinCount:          aws.Int32(1),
		MaxCount:          aws.Int32(1),
		SubnetId:          aws.String(spec.SubnetID),
		TagSpecifications: tagSpecifications(spec),
	}
	if len(p.config.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = p.config.SecurityGroupIDs
	}
	if spec.StorageSize > 0 {
		input.BlockDeviceMappings = []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String(p.config.RootDeviceName),
			Ebs: &ec2types.EbsBlockDevice{
				VolumeSize:          aws.Int32(int32(spec.StorageSize)),
				VolumeType:          ec2types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		}}
	}

	client := p.client(region)
	return instrument.Value(ctx, p.obs, "RunInstances", func(ctx context.Context) (*types.LaunchResult, error) {
		out, err := client.RunInstances(ctx, input)
		if err != nil {
			return nil, cloud.Classify("RunInstances", err)
		}
		if len(out.Instances) == 0 {
			return nil, errors.NewError(errors.ErrCodeDependencyFailed, "AWS Error").
				WithOperation("RunInstances").
				WithDetail("reason", "no instance returned")
		}
		inst := out.Instances[0]
		p.logger.Info("Instance launched",
			"instanceId", aws.ToString(inst.InstanceId),
			"region", region,
			"subnetId", spec.SubnetID)
		return &types.LaunchResult{
			InstanceID: aws.ToString(inst.InstanceId),
			PrivateIP:  aws.ToString(inst.PrivateIpAddress),
			PublicIP:   aws.ToString(inst.PublicIpAddress),
		}, nil
	})
}

func tagSpecifications(spec types.LaunchSpec) []ec2types.TagSpecification {
	tags := map[string]string{
		"Name":  spec.Name,
		"Owner": spec.OwnerID,
	}
	for k, v := range spec.Tags {
		tags[k] = v
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ec2Tags := make([]ec2types.Tag, 0, len(keys))
	for _, k := range keys {
		ec2Tags = append(ec2Tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return []ec2types.TagSpecification{{
		ResourceType: ec2types.ResourceTypeInstance,
		Tags:         ec2Tags,
	}}
}

// DescribeInstance combines the instance state with its status checks.
func (p *Provider) DescribeInstance(ctx context.Context, region, instanceID string) (*types.InstanceState, error) {
	client := p.client(region)
	return instrument.Value(ctx, p.obs, "DescribeInstances", func(ctx context.Context) (*types.InstanceState, error) {
		out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{instanceID},
		})
		if err != nil {
			return nil, translateError("DescribeInstances", instanceID, err)
		}

		var found *ec2types.Instance
		for _, r := range out.Reservations {
			for i := range r.Instances {
				if aws.ToString(r.Instances[i].InstanceId) == instanceID {
					found = &r.Instances[i]
				}
			}
		}
		if found == nil {
			return nil, instanceNotFound(instanceID)
		}

		state := &types.InstanceState{
			InstanceID:   instanceID,
			InstanceType: string(found.InstanceType),
			PrivateIP:    aws.ToString(found.PrivateIpAddress),
			PublicIP:     aws.ToString(found.PublicIpAddress),
			LaunchTime:   aws.ToTime(found.LaunchTime),
		}
		if found.State != nil {
			state.State = string(found.State.Name)
		}
		if state.State != types.InstanceRunning {
			return state, nil
		}

		status, err := client.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
			InstanceIds:         []string{instanceID},
			IncludeAllInstances: aws.Bool(true),
		})
		if err != nil {
			return nil, translateError("DescribeInstanceStatus", instanceID, err)
		}
		for _, s := range status.InstanceStatuses {
			if s.SystemStatus != nil && s.InstanceStatus != nil {
				state.ChecksOK = s.SystemStatus.Status == ec2types.SummaryStatusOk &&
					s.InstanceStatus.Status == ec2types.SummaryStatusOk
			}
		}
		return state, nil
	})
}

func (p *Provider) StartInstance(ctx context.Context, region, instanceID string) error {
	client := p.client(region)
	return p.obs.Do(ctx, "StartInstances", func(ctx context.Context) error {
		_, err := client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{instanceID}})
		return translateError("StartInstances", instanceID, err)
	})
}

func (p *Provider) StopInstance(ctx context.Context, region, instanceID string) error {
	client := p.client(region)
	return p.obs.Do(ctx, "StopInstances", func(ctx context.Context) error {
		_, err := client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{instanceID}})
		return translateError("StopInstances", instanceID, err)
	})
}

func (p *Provider) TerminateInstance(ctx context.Context, region, instanceID string) error {
	client := p.client(region)
	return p.obs.Do(ctx, "TerminateInstances", func(ctx context.Context) error {
		_, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{instanceID}})
		return translateError("TerminateInstances", instanceID, err)
	})
}

// CreateKeyPair returns the new key pair together with its private key.
func (p *Provider) CreateKeyPair(ctx context.Context, region, name string) (*types.KeyPair, error) {
	client := p.client(region)
	return instrument.Value(ctx, p.obs, "CreateKeyPair", func(ctx context.Context) (*types.KeyPair, error) {
		out, err := client.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
			KeyName: aws.String(name),
			KeyType: ec2types.KeyTypeRsa,
		})
		if err != nil {
			return nil, cloud.Classify("CreateKeyPair", err)
		}
		return &types.KeyPair{
			Name:       aws.ToString(out.KeyName),
			PrivateKey: aws.ToString(out.KeyMaterial),
		}, nil
	})
}

func (p *Provider) DeleteKeyPair(ctx context.Context, region, name string) error {
	client := p.client(region)
	return p.obs.Do(ctx, "DeleteKeyPair", func(ctx context.Context) error {
		_, err := client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: aws.String(name)})
		return cloud.Classify("DeleteKeyPair", err)
	})
}

func translateError(op, instanceID string, err error) error {
	if err == nil {
		return nil
	}
	switch cloud.APICode(err) {
	case "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed":
		return instanceNotFound(instanceID).WithOperation(op).WithCause(err)
	}
	return cloud.Classify(op, err)
}

func instanceNotFound(instanceID string) *errors.SmartPCError {
	return errors.NotFound(errors.ErrCodeInstanceNotFound, fmt.Sprintf("instance not found: %s", instanceID)).
		WithComponent(Component)
}
