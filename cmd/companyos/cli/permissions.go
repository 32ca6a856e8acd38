package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
)

// PermissionsCLI drops cached role permissions after grants change.
type PermissionsCLI struct {
	store *authz.PermissionStore
}

func NewPermissionsCLI(store *authz.PermissionStore) *PermissionsCLI {
	return &PermissionsCLI{store: store}
}

// InvalidateCommand clears the cache for role, printing the permissions
// reloaded from storage.
func (c *PermissionsCLI) InvalidateCommand(ctx context.Context, rawRole string, stdout, stderr io.Writer) int {
	stdout, stderr = writers(stdout, stderr)
	role, err := authz.ParseRole(rawRole)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "permissions invalidate: %v\n", err)
		return 1
	}
	if err := c.store.Invalidate(ctx, role); err != nil {
		_, _ = fmt.Fprintf(stderr, "permissions invalidate: %v\n", err)
		return 1
	}
	perms, err := c.store.ForRole(ctx, role)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "permissions invalidate: reload: %v\n", err)
		return 1
	}
	for _, p := range perms {
		_, _ = fmt.Fprintln(stdout, p.String())
	}
	return 0
}
