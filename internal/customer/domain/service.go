package domain

import (
	"context"
	"errors"
)

type CreateCustomerRequest struct {
	TenantID string
	Name     string
	Phone    string
	Email    string
}

type GetCustomerRequest struct {
	TenantID string
	ID       string
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
}

var (
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidContact = errors.New("invalid_contact")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
)
