package doctor

import "context"

// Repository defines read access to doctor profiles.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	GetByUserID(ctx context.Context, userID int64) (*Doctor, error)
}
