package domain

import (
	"strconv"
	"strings"
)

// ActivePageSize é o tamanho fixo da página de apostas ativas
const ActivePageSize = 50

// RecentLimit limita as listagens de executadas e pendentes
const RecentLimit = 20

// OrderField são os campos permitidos para ordenar a listagem de ativas
type OrderField string

const (
	OrderByCreatedAt OrderField = "createdAt"
	OrderByAmount    OrderField = "amount"
	OrderByEdge      OrderField = "edge"
)

// OrderDirection é ASC ou DESC
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// ListOptions substitui o objeto livre de opções vindo da query string
type ListOptions struct {
	OrderField     OrderField
	OrderDirection OrderDirection
	Offset         int
}

// DefaultListOptions ordena pelas mais recentes
func DefaultListOptions() ListOptions {
	return ListOptions{OrderField: OrderByCreatedAt, OrderDirection: OrderDesc}
}

// ParseListOptions valida os parâmetros crus; valores vazios usam o default
func ParseListOptions(field, direction, offset string) (ListOptions, error) {
	opts := DefaultListOptions()

	if field != "" {
		switch f := OrderField(field); f {
		case OrderByCreatedAt, OrderByAmount, OrderByEdge:
			opts.OrderField = f
		default:
			return ListOptions{}, Invalid(CodeInvalidListOptions, "invalid order field %q", field)
		}
	}

	if direction != "" {
		switch d := OrderDirection(strings.ToUpper(direction)); d {
		case OrderAsc, OrderDesc:
			opts.OrderDirection = d
		default:
			return ListOptions{}, Invalid(CodeInvalidListOptions, "invalid order direction %q", direction)
		}
	}

	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return ListOptions{}, Invalid(CodeInvalidListOptions, "invalid offset %q", offset)
		}
		opts.Offset = n
	}

	return opts, nil
}
