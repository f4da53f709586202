package carnivalstore

import _ "embed"

//go:embed schema.sql
var Schema string

// Field names the import pipeline is allowed to touch. These are also
// the names the website writes into manual_override_fields when a
// delegate hand-edits a field.
const (
	FieldTitle                 = "title"
	FieldDate                  = "date"
	FieldState                 = "state"
	FieldLocationAddress       = "locationAddress"
	FieldRegistrationLink      = "registrationLink"
	FieldOrganiserContactName  = "organiserContactName"
	FieldOrganiserContactEmail = "organiserContactEmail"
	FieldOrganiserContactPhone = "organiserContactPhone"
	FieldLogoUrl               = "logoUrl"
	FieldDescription           = "description"
)

var fieldColumns = map[string]string{
	FieldTitle:                 "title",
	FieldDate:                  "date",
	FieldState:                 "state",
	FieldLocationAddress:       "location_address",
	FieldRegistrationLink:      "registration_link",
	FieldOrganiserContactName:  "organiser_contact_name",
	FieldOrganiserContactEmail: "organiser_contact_email",
	FieldOrganiserContactPhone: "organiser_contact_phone",
	FieldLogoUrl:               "logo_url",
	FieldDescription:           "description",
}
