// File: model/institutions.go
package model

import "time"

// Institution stores information about a principal authorized to issue certificates.
type Institution struct {
	ObjectType    string    `json:"objectType"`    // Set to the composite key object type (Institution)
	ID            string    `json:"id"`            // Full client identity string of the institution
	Name          string    `json:"name"`          // Display name, e.g. "State University"
	Authorized    bool      `json:"authorized"`    // Whether this institution may issue certificates
	AddedBy       string    `json:"addedBy"`       // Full ID of the owner identity that added this record
	AddedAt       time.Time `json:"addedAt"`       // Timestamp of first registration
	LastUpdatedAt time.Time `json:"lastUpdatedAt"` // Timestamp of last update to this record
}
