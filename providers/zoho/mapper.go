package zoho

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-unify/core"
)

// ContactMapper translates between canonical contacts and Zoho CRM's contact
// module. Zoho uses capitalized field API names and puts custom fields at the
// top level under their API name.
type ContactMapper struct{}

func NewContactMapper() ContactMapper {
	return ContactMapper{}
}

func (ContactMapper) Desunify(_ context.Context, source core.Contact, mappings []core.FieldMapping) (map[string]any, error) {
	payload := map[string]any{
		"First_Name": source.FirstName,
		"Last_Name":  source.LastName,
	}
	if len(source.Emails) > 0 {
		payload["Email"] = source.Emails[0].Address
	}
	for _, phone := range source.Phones {
		if strings.EqualFold(phone.Type, "mobile") {
			if _, taken := payload["Mobile"]; !taken {
				payload["Mobile"] = phone.Number
			}
			continue
		}
		if _, taken := payload["Phone"]; !taken {
			payload["Phone"] = phone.Number
		}
	}

	for _, mapping := range mappings {
		if value, ok := source.FieldMappings[mapping.Slug]; ok {
			payload[mapping.RemoteID] = value
		}
	}
	return payload, nil
}

func (ContactMapper) Unify(_ context.Context, records []map[string]any, mappings []core.FieldMapping) ([]core.Contact, error) {
	contacts := make([]core.Contact, 0, len(records))
	for _, record := range records {
		if record == nil {
			return nil, fmt.Errorf("zoho: contact record is nil")
		}
		contact := core.Contact{
			FirstName: readField(record, "First_Name"),
			LastName:  readField(record, "Last_Name"),
		}
		if email := readField(record, "Email"); email != "" {
			contact.Emails = append(contact.Emails, core.ContactEmail{Address: email, Type: "work"})
		}
		if phone := readField(record, "Phone"); phone != "" {
			contact.Phones = append(contact.Phones, core.ContactPhone{Number: phone, Type: "work"})
		}
		if mobile := readField(record, "Mobile"); mobile != "" {
			contact.Phones = append(contact.Phones, core.ContactPhone{Number: mobile, Type: "mobile"})
		}

		if len(mappings) > 0 {
			values := map[string]any{}
			for _, mapping := range mappings {
				if value, ok := record[mapping.RemoteID]; ok {
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

func readField(record map[string]any, key string) string {
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
