package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownCallback = errors.New("unrecognized callback data")

// Callback is the decoded form of an inline-button payload. Decoding is a
// closed set: anything that does not match a known variant is rejected
// instead of best-effort parsed.
type Callback interface {
	callback()
}

type CategoryCallback struct{ Category string }

type ServiceCallback struct{ ServiceID string }

type QuantityCallback struct {
	ServiceID string
	Quantity  int
}

type CheckPaymentCallback struct{ OrderID string }

type MainMenuCallback struct{}

type MyOrdersCallback struct{}

type HelpCallback struct{}

func (CategoryCallback) callback()     {}
func (ServiceCallback) callback()      {}
func (QuantityCallback) callback()     {}
func (CheckPaymentCallback) callback() {}
func (MainMenuCallback) callback()     {}
func (MyOrdersCallback) callback()     {}
func (HelpCallback) callback()         {}

// Callback-data builders, kept next to the parser so the wire format has a
// single owner.
func categoryData(category string) string { return "category_" + category }
func serviceData(id string) string        { return "service_" + id }
func quantityData(id string, qty int) string {
	return fmt.Sprintf("quantity_%s_%d", id, qty)
}
func checkPaymentData(orderID string) string { return "check_payment_" + orderID }

const (
	mainMenuData = "back_to_main"
	myOrdersData = "check_orders"
	helpData     = "help"
)

// ParseCallback decodes inline-button data. Service ids must not contain
// underscores; order ids never do (they are hyphen-separated).
func ParseCallback(data string) (Callback, error) {
	switch data {
	case mainMenuData, "menu":
		return MainMenuCallback{}, nil
	case myOrdersData:
		return MyOrdersCallback{}, nil
	case helpData, "info":
		return HelpCallback{}, nil
	}

	switch {
	case strings.HasPrefix(data, "category_"):
		category := strings.TrimPrefix(data, "category_")
		if category == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return CategoryCallback{Category: category}, nil

	case strings.HasPrefix(data, "service_"):
		id := strings.TrimPrefix(data, "service_")
		if id == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return ServiceCallback{ServiceID: id}, nil

	case strings.HasPrefix(data, "product_"):
		id := strings.TrimPrefix(data, "product_")
		if id == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return ServiceCallback{ServiceID: id}, nil

	case strings.HasPrefix(data, "buy_"):
		id := strings.TrimPrefix(data, "buy_")
		if id == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return ServiceCallback{ServiceID: id}, nil

	case strings.HasPrefix(data, "quantity_"):
		rest := strings.TrimPrefix(data, "quantity_")
		sep := strings.LastIndex(rest, "_")
		if sep <= 0 || sep == len(rest)-1 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		qty, err := strconv.Atoi(rest[sep+1:])
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return QuantityCallback{ServiceID: rest[:sep], Quantity: qty}, nil

	case strings.HasPrefix(data, "check_payment_"):
		id := strings.TrimPrefix(data, "check_payment_")
		if id == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return CheckPaymentCallback{OrderID: id}, nil

	case strings.HasPrefix(data, "pay_"):
		id := strings.TrimPrefix(data, "pay_")
		if id == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return CheckPaymentCallback{OrderID: id}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
}
