package zoho

import (
	"context"
	"testing"

	"github.com/goliatone/go-unify/core"
)

func TestContactMapper_DesunifyUsesAPIFieldNames(t *testing.T) {
	mapper := NewContactMapper()

	payload, err := mapper.Desunify(context.Background(), core.Contact{
		FirstName: "Jane",
		LastName:  "Doe",
		Emails:    []core.ContactEmail{{Address: "jane@example.com", Type: "work"}},
		Phones: []core.ContactPhone{
			{Number: "+15550100", Type: "work"},
			{Number: "+15550101", Type: "MOBILE"},
			{Number: "+15550102", Type: "work"},
		},
		FieldMappings: map[string]any{"fav_dish": "lasagna"},
	}, []core.FieldMapping{{Slug: "fav_dish", RemoteID: "Fav_Dish"}})
	if err != nil {
		t.Fatalf("desunify: %v", err)
	}

	if payload["First_Name"] != "Jane" || payload["Last_Name"] != "Doe" {
		t.Fatalf("unexpected names: %v", payload)
	}
	if payload["Email"] != "jane@example.com" {
		t.Fatalf("expected Email field, got %v", payload["Email"])
	}
	if payload["Phone"] != "+15550100" {
		t.Fatalf("expected first work number in Phone, got %v", payload["Phone"])
	}
	if payload["Mobile"] != "+15550101" {
		t.Fatalf("expected mobile number in Mobile, got %v", payload["Mobile"])
	}
	// Custom fields land at the top level under their API name.
	if payload["Fav_Dish"] != "lasagna" {
		t.Fatalf("expected top-level custom field, got %v", payload)
	}
}

func TestContactMapper_UnifyReadsCRMRecords(t *testing.T) {
	mapper := NewContactMapper()

	contacts, err := mapper.Unify(context.Background(), []map[string]any{
		{
			"First_Name": "Jane",
			"Last_Name":  "Doe",
			"Email":      "jane@example.com",
			"Phone":      "+15550100",
			"Mobile":     "+15550101",
			"Fav_Dish":   "lasagna",
			"Other":      "ignored",
		},
	}, []core.FieldMapping{{Slug: "fav_dish", RemoteID: "Fav_Dish"}})
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}

	contact := contacts[0]
	if contact.FirstName != "Jane" || contact.LastName != "Doe" {
		t.Fatalf("unexpected names: %+v", contact)
	}
	if len(contact.Phones) != 2 {
		t.Fatalf("expected 2 phones, got %+v", contact.Phones)
	}
	if contact.FieldMappings["fav_dish"] != "lasagna" {
		t.Fatalf("expected mapped custom value, got %v", contact.FieldMappings)
	}
	if _, leaked := contact.FieldMappings["Other"]; leaked {
		t.Fatalf("expected unmapped fields to be dropped")
	}
}

func TestContactMapper_UnifyRejectsNilRecords(t *testing.T) {
	mapper := NewContactMapper()
	if _, err := mapper.Unify(context.Background(), []map[string]any{nil}, nil); err == nil {
		t.Fatalf("expected nil record error")
	}
}
