package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePermissions(t *testing.T) {
	got := normalizePermissions([]string{" Inventory.Post ", "inventory.post", "", "finance.view"})
	assert.Len(t, got, 2)
	assert.Contains(t, got, "inventory.post")
	assert.Contains(t, got, "finance.view")
}

func TestHasAnyPermission(t *testing.T) {
	granted := []string{"inventory.view", "Finance.View"}
	assert.True(t, hasAnyPermission(granted, []string{"finance.view", "admin"}))
	assert.False(t, hasAnyPermission(granted, []string{"admin"}))
	assert.True(t, hasAnyPermission(granted, nil))
}

func TestHasAllPermissions(t *testing.T) {
	granted := []string{"inventory.view", "inventory.post"}
	assert.True(t, hasAllPermissions(granted, []string{"inventory.view", "inventory.post"}))
	assert.False(t, hasAllPermissions(granted, []string{"inventory.view", "admin"}))
	assert.True(t, hasAllPermissions(nil, nil))
}
