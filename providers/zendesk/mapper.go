package zendesk

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-unify/core"
)

// ContactMapper translates between canonical contacts and the Sell contact
// shape. Sell keeps a single email and phone per contact and tucks custom
// fields under "custom_fields".
type ContactMapper struct{}

func NewContactMapper() ContactMapper {
	return ContactMapper{}
}

func (ContactMapper) Desunify(_ context.Context, source core.Contact, mappings []core.FieldMapping) (map[string]any, error) {
	payload := map[string]any{
		"first_name": source.FirstName,
		"last_name":  source.LastName,
	}
	if len(source.Emails) > 0 {
		payload["email"] = source.Emails[0].Address
	}
	if len(source.Phones) > 0 {
		payload["phone"] = source.Phones[0].Number
	}

	if len(mappings) > 0 && len(source.FieldMappings) > 0 {
		custom := map[string]any{}
		for _, mapping := range mappings {
			if value, ok := source.FieldMappings[mapping.Slug]; ok {
				custom[mapping.RemoteID] = value
			}
		}
		if len(custom) > 0 {
			payload["custom_fields"] = custom
		}
	}
	return payload, nil
}

func (ContactMapper) Unify(_ context.Context, records []map[string]any, mappings []core.FieldMapping) ([]core.Contact, error) {
	contacts := make([]core.Contact, 0, len(records))
	for _, record := range records {
		if record == nil {
			return nil, fmt.Errorf("zendesk: contact record is nil")
		}
		contact := core.Contact{
			FirstName: readString(record, "first_name"),
			LastName:  readString(record, "last_name"),
		}
		if email := readString(record, "email"); email != "" {
			contact.Emails = append(contact.Emails, core.ContactEmail{Address: email, Type: "work"})
		}
		if phone := readString(record, "phone"); phone != "" {
			contact.Phones = append(contact.Phones, core.ContactPhone{Number: phone, Type: "work"})
		}
		if mobile := readString(record, "mobile"); mobile != "" {
			contact.Phones = append(contact.Phones, core.ContactPhone{Number: mobile, Type: "mobile"})
		}

		if len(mappings) > 0 {
			custom, _ := record["custom_fields"].(map[string]any)
			values := map[string]any{}
			for _, mapping := range mappings {
				if value, ok := custom[mapping.RemoteID]; ok {
					values[mapping.Slug] = value
				}
			}
			if len(values) > 0 {
				contact.FieldMappings = values
			}
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func readString(record map[string]any, key string) string {
	value, ok := record[key]
	if !ok || value == nil {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		text = fmt.Sprint(value)
	}
	return strings.TrimSpace(text)
}
