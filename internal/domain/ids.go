package domain

// UserID is the authenticated subject extracted from JWT claims (typically "sub").
// We model it as an opaque identifier: its format is controlled by the IdP.
type UserID string

// SiteID identifies a geofenced work location.
type SiteID int64

// ShiftID identifies a shift record.
type ShiftID int64

// IncidentID identifies an incident record.
type IncidentID int64

// ReportID identifies a generated report record.
type ReportID int64

// SupplyID identifies a supply catalog entry.
type SupplyID int64

// DeliveryID identifies a supply delivery record.
type DeliveryID int64

// LegalTermID identifies a versioned legal-terms document.
type LegalTermID int64
