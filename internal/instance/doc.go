/*
Package instance orchestrates the lifecycle of remote desktop instances.

An instance moves through (none) → running ⇄ stopped → terminated. The
"initializing" state is derived at read time for running instances whose
status checks are not both green, and "not found" is reported when the
provider has no such instance.

Create registers a launched instance in several inventory tables and bumps
two counters. When any step after the launch fails, the completed steps are
compensated newest first:

	launch ─► key pair ─► IP record ─► user data ─► tracking ─► subnet +1 ─► quota +1 ─► idle setting
	   ▲          ▲           ▲            ▲                        ▲            ▲
	terminate  delete      remove       remove                  subnet -1    quota -1

Counters are adjusted with relative updates clamped at zero, so concurrent
creates and deletes cannot lose increments.

Authorization: admins act for the owner named in their token, members may
only start and stop instances assigned to them, and every other caller acts
for itself.
*/
package instance
