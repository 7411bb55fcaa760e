package helper

import (
	"backend-loket/internal/models"

	"github.com/pkg/errors"
)

var (
	ErrInvalidRole  = errors.New("role tidak sesuai")
	ErrWrongCounter = errors.New("bukan loket anda")
)

func HasRole(role string, allowedRoles ...string) bool {
	for _, allowedRole := range allowedRoles {
		if role == allowedRole {
			return true
		}
	}
	return false
}

// CheckCounterAccess - super_user boleh semua loket, petugas counter hanya loketnya sendiri
func CheckCounterAccess(role string, ownCounterID *int64, counterID int64) error {
	switch role {
	case models.RoleSuperUser:
		return nil
	case models.RoleCounter:
		if ownCounterID == nil || *ownCounterID != counterID {
			return errors.Wrapf(ErrWrongCounter, "counter %d", counterID)
		}
		return nil
	}
	return errors.Wrapf(ErrInvalidRole, "role %q", role)
}
