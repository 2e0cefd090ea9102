package domain

import "fmt"

type Purpose int

const (
	UndefinedPurpose Purpose = iota
	VoicemailToPeer
	VoicemailToSelf
	VoicemailSentCopy
	VoicemailArchivedCopy
	ContactRecord
	TaskRecord
)

func (p Purpose) String() string {
	switch p {
	case VoicemailToPeer:
		return "voicemail-outbound-to-peer"
	case VoicemailToSelf:
		return "voicemail-outbound-to-self"
	case VoicemailSentCopy:
		return "voicemail-sent-copy"
	case VoicemailArchivedCopy:
		return "voicemail-archived-copy"
	case ContactRecord:
		return "contact"
	case TaskRecord:
		return "task"
	default:
		return "undefined"
	}
}

const (
	VoicemailNamespace         = "voicemail-rebuild"
	VoicemailSentNamespace     = "voicemail-rebuild-sent"
	VoicemailArchivedNamespace = "voicemail-rebuild-archived"
	ContactsNamespace          = "voicemail-contacts"
	TasksNamespace             = "todo-list"

	InternalizeInboxBasket = "internalize-inbox"
	SelfInboxBasket        = "self-inbox"
	SentCopyBasket         = "sent-copy"
	ArchivedBasket         = "archived"
	ContactsBasket         = "contacts"
	TasksBasket            = "tasks"

	// DefaultKeyID is the key id used for every token field.
	DefaultKeyID = "1"

	// SelfCounterparty designates the wallet owner as counterparty.
	SelfCounterparty = "self"
)

type Namespace struct {
	Name          string
	DefaultBasket string
}

var registry = map[Purpose]Namespace{
	VoicemailToPeer:       {VoicemailNamespace, InternalizeInboxBasket},
	VoicemailToSelf:       {VoicemailNamespace, SelfInboxBasket},
	VoicemailSentCopy:     {VoicemailSentNamespace, SentCopyBasket},
	VoicemailArchivedCopy: {VoicemailArchivedNamespace, ArchivedBasket},
	ContactRecord:         {ContactsNamespace, ContactsBasket},
	TaskRecord:            {TasksNamespace, TasksBasket},
}

func NamespaceFor(purpose Purpose) (Namespace, error) {
	ns, ok := registry[purpose]
	if !ok {
		return Namespace{}, fmt.Errorf("%w: %d", ErrUnknownPurpose, purpose)
	}
	return ns, nil
}

// MustNamespaceFor panics for unknown purposes, those can only come from a
// programming error.
func MustNamespaceFor(purpose Purpose) Namespace {
	ns, err := NamespaceFor(purpose)
	if err != nil {
		panic(err)
	}
	return ns
}

// Field describes one slot of a token layout.
type Field struct {
	Name      string
	Encrypted bool
}

// Layout is the fixed field order of the tokens of a namespace.
type Layout struct {
	Namespace string
	Fields    []Field
}

func (l Layout) Len() int {
	return len(l.Fields)
}

const (
	SenderField      = "sender"
	RecipientField   = "recipient"
	AudioField       = "audio"
	TimestampField   = "timestamp"
	NoteField        = "note"
	NameField        = "name"
	IdentityKeyField = "identity-key"
	CreatedAtField   = "created-at"
	DescriptionField = "description"
)

var layouts = map[string]Layout{
	VoicemailNamespace: {VoicemailNamespace, []Field{
		{SenderField, false},
		{AudioField, true},
		{TimestampField, true},
		{NoteField, true},
	}},
	VoicemailSentNamespace: {VoicemailSentNamespace, []Field{
		{RecipientField, true},
		{AudioField, true},
		{TimestampField, true},
		{NoteField, true},
	}},
	VoicemailArchivedNamespace: {VoicemailArchivedNamespace, []Field{
		{SenderField, true},
		{AudioField, true},
		{TimestampField, true},
		{NoteField, true},
	}},
	ContactsNamespace: {ContactsNamespace, []Field{
		{NameField, true},
		{IdentityKeyField, true},
		{CreatedAtField, true},
	}},
	TasksNamespace: {TasksNamespace, []Field{
		{DescriptionField, true},
	}},
}

func LayoutFor(namespace string) (Layout, error) {
	layout, ok := layouts[namespace]
	if !ok {
		return Layout{}, fmt.Errorf("unknown namespace %s", namespace)
	}
	return layout, nil
}

// Index returns the position of the named field, or -1.
func (l Layout) Index(name string) int {
	for i, f := range l.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
