package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// User is the sender profile: spendable balance and recipients they trust.
type User struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	UPIID           string   `json:"upiId"`
	Balance         float64  `json:"balance"`
	TrustedContacts []string `json:"trustedContacts"`
}

// TrustedSet returns the profile's trusted contacts as a lookup set.
func (u *User) TrustedSet() TrustedContactSet {
	if u == nil {
		return nil
	}
	return NewTrustedContactSet(u.TrustedContacts...)
}

func (u *User) Clone() *User {
	c := *u
	c.TrustedContacts = append([]string(nil), u.TrustedContacts...)
	return &c
}

// TrustedContactSet is a set of recipient identifiers exempt from part of the score.
type TrustedContactSet map[string]struct{}

func NewTrustedContactSet(ids ...string) TrustedContactSet {
	set := make(TrustedContactSet, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func (s TrustedContactSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s[id]
	return ok
}

// DisplayName derives a human name from a UPI handle: "rahul.sharma@upi" -> "Rahul Sharma".
func DisplayName(upi string) string {
	handle := strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(Handle(upi))
	handle = strings.Join(strings.Fields(handle), " ")
	if handle == "" {
		return upi
	}
	// Casers keep state, so one is built per call.
	return cases.Title(language.English).String(handle)
}
