package domain

import "fmt"

type View string

const (
	InboxView    View = "inbox"
	SentView     View = "sent"
	ArchivedView View = "archived"
	ContactsView View = "contacts"
	TasksView    View = "tasks"
)

var Views = []View{InboxView, SentView, ArchivedView, ContactsView, TasksView}

var viewBaskets = map[View][]string{
	InboxView:    {SelfInboxBasket, InternalizeInboxBasket},
	SentView:     {SentCopyBasket},
	ArchivedView: {ArchivedBasket},
	ContactsView: {ContactsBasket},
	TasksView:    {TasksBasket},
}

func ParseView(s string) (View, error) {
	v := View(s)
	if _, ok := viewBaskets[v]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownView, s)
	}
	return v, nil
}

// BasketsToScan returns the baskets holding the tokens of the given view.
func BasketsToScan(view View) ([]string, error) {
	baskets, ok := viewBaskets[view]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, view)
	}
	return append([]string{}, baskets...), nil
}

func InsertionBasketFor(purpose Purpose) (string, error) {
	ns, err := NamespaceFor(purpose)
	if err != nil {
		return "", err
	}
	return ns.DefaultBasket, nil
}

func ViewForBasket(basket string) (View, error) {
	for view, baskets := range viewBaskets {
		for _, b := range baskets {
			if b == basket {
				return view, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no view for basket %s", ErrUnknownView, basket)
}

// PurposeForBasket returns the purpose of the tokens inserted into basket.
func PurposeForBasket(basket string) (Purpose, error) {
	for purpose, ns := range registry {
		if ns.DefaultBasket == basket {
			return purpose, nil
		}
	}
	return UndefinedPurpose, fmt.Errorf("unknown basket %s", basket)
}

// NamespaceForBasket returns the encryption namespace of the tokens stored in
// the given basket.
func NamespaceForBasket(basket string) (string, error) {
	purpose, err := PurposeForBasket(basket)
	if err != nil {
		return "", err
	}
	return registry[purpose].Name, nil
}
