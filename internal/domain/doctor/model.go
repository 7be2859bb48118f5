package doctor

import "time"

// Doctor maps to the doctor table. It links a platform user account to a
// clinical profile; appointments reference the profile id, not the user id.
// Read-only within the consultation core.
type Doctor struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Specialty *string   `db:"specialty" json:"specialty,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
