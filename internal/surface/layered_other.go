//go:build !windows

package surface

import "github.com/chartglass/overlay/internal/winsys"

func newLayeredFactory() (Factory, error) {
	return nil, winsys.NewError(winsys.CodeBackendUnavailable,
		"layered surface backend requires windows", nil)
}
