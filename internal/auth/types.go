package auth

import "time"

// ProcessServer is the registered identity of an entity serving notices.
// Rows are never deleted; deactivation happens through Status.
type ProcessServer struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Name          string    `json:"name"`
	Agency        string    `json:"agency,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Jurisdiction  string    `json:"jurisdiction,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Process server statuses.
const (
	ServerPending  = "pending"
	ServerApproved = "approved"
	ServerActive   = "active"
	ServerDisabled = "disabled"
)

// AdminUser is a human operator of the admin surface.
type AdminUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccessLogEntry is one row of the append-only admin access log.
type AccessLogEntry struct {
	ID         string    `json:"id"`
	AdminID    string    `json:"admin_id"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
