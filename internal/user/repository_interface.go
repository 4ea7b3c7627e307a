package user

import "context"

type Repository interface {
	Create(ctx context.Context, name, email, passwordHash, role, storeID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	FindStoreAdmin(ctx context.Context, storeID string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}
