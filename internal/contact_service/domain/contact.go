package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FallbackAddrType is used when neither the caller nor the contact names an
// address type.
const FallbackAddrType = "msisdn"

// Address is one typed delivery address, e.g. msisdn:+27123.
type Address struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Contact is a recipient with an ordered list of delivery addresses.
type Contact struct {
	ID              uuid.UUID         `json:"id"`
	Version         int               `json:"version"`
	Addresses       []Address         `json:"addresses"`
	DefaultAddrType string            `json:"default_addr_type,omitempty"`
	Details         map[string]string `json:"details,omitempty"` // remaining free-form details
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NewContact creates a Contact from its stored address string.
func NewContact(id uuid.UUID, addresses, defaultAddrType string, details map[string]string) *Contact {
	now := time.Now().UTC()
	if details == nil {
		details = make(map[string]string)
	}
	return &Contact{
		ID:              id,
		Version:         1,
		Addresses:       ParseAddresses(addresses),
		DefaultAddrType: defaultAddrType,
		Details:         details,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Address returns every address value of addrType in stored order. An empty
// addrType selects the contact's default type, or FallbackAddrType when the
// contact has none. The result is never nil.
func (c *Contact) Address(addrType string) []string {
	if addrType == "" {
		addrType = c.DefaultAddrType
	}
	if addrType == "" {
		addrType = FallbackAddrType
	}
	found := []string{}
	for _, a := range c.Addresses {
		if a.Type == addrType {
			found = append(found, a.Value)
		}
	}
	return found
}

// ParseAddresses parses "type:value type:value". Entries without a type
// separator are skipped.
func ParseAddresses(s string) []Address {
	fields := strings.Fields(s)
	out := make([]Address, 0, len(fields))
	for _, f := range fields {
		typ, value, ok := strings.Cut(f, ":")
		if !ok || typ == "" {
			continue
		}
		out = append(out, Address{Type: typ, Value: value})
	}
	return out
}

// FormatAddresses is the inverse of ParseAddresses.
func FormatAddresses(addrs []Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.Type+":"+a.Value)
	}
	return strings.Join(parts, " ")
}
