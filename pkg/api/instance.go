package api

import (
	"io"
	"net/http"

	"github.com/smartpc/smartpc/internal/instance"
	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/types"
)

// claims decodes the bearer token of r.
func (s *Server) claims(r *http.Request) (*types.Claims, error) {
	if s.identity == nil {
		return nil, errors.NewError(errors.ErrCodeAuthenticationFailed, "Identity decoding is not configured")
	}
	return s.identity.Decode(r.Header.Get("Authorization"))
}

// handleInstance reads the action discriminator first, then decodes and
// validates the body of that action. checkStatus is the only action that
// does not need an identity.
func (s *Server) handleInstance(r *http.Request) (interface{}, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Validation("Could not read request body").WithCause(err)
	}
	var env instance.Envelope
	if err := s.decodeBytes(data, &env); err != nil {
		return nil, err
	}
	ctx := r.Context()

	if env.Action == instance.ActionCreate {
		var req instance.CreateRequest
		if err := s.decodeBytes(data, &req); err != nil {
			return nil, err
		}
		claims, err := s.claims(r)
		if err != nil {
			return nil, err
		}
		return s.instances.Create(ctx, claims, req)
	}

	var req instance.TargetRequest
	if err := s.decodeBytes(data, &req); err != nil {
		return nil, err
	}
	if env.Action == instance.ActionCheckStatus {
		return s.instances.CheckStatus(ctx, req)
	}

	claims, err := s.claims(r)
	if err != nil {
		return nil, err
	}
	switch env.Action {
	case instance.ActionDelete:
		return s.instances.Delete(ctx, claims, req)
	case instance.ActionStart:
		return s.instances.Start(ctx, claims, req)
	default:
		return s.instances.Stop(ctx, claims, req)
	}
}

func (s *Server) handleListInstances(r *http.Request) (interface{}, error) {
	claims, err := s.claims(r)
	if err != nil {
		return nil, err
	}
	views, err := s.instances.List(r.Context(), claims)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"instances": views}, nil
}
