package model

import "time"

// Certificate is the central record of the registry: an issued academic
// credential with a two-state validity lifecycle. A certificate is valid from
// issuance until its issuing institution revokes it; revocation is one-way.
type Certificate struct {
	ObjectType             string    `json:"objectType"` // "Certificate"
	ID                     string    `json:"id"`         // Registry-assigned unique identifier (decimal counter)
	StudentName            string    `json:"studentName"`
	CourseName             string    `json:"courseName"`
	CertificateHash        string    `json:"certificateHash"` // Opaque content fingerprint, never interpreted here
	IssueDate              time.Time `json:"issueDate"`
	IsValid                bool      `json:"isValid"`
	IssuingInstitution     string    `json:"issuingInstitution"`     // Full client ID of the issuer; immutable
	IssuingInstitutionName string    `json:"issuingInstitutionName"` // Display name, enriched on reads if empty
	RevokedAt              time.Time `json:"revokedAt"`              // Zero until the certificate is revoked
}

// CertificateHistoryEntry represents one committed historical state of a certificate.
type CertificateHistoryEntry struct {
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`
	IsDelete  bool      `json:"isDelete"`
	IsValid   bool      `json:"isValid"` // Validity flag of the certificate at that point
	Value     string    `json:"value"`   // Raw JSON value of the record at that time
}

// PaginatedCertificateResponse is the structure returned by paginated certificate queries.
type PaginatedCertificateResponse struct {
	Certificates []*Certificate `json:"certificates"`
	NextBookmark string         `json:"nextBookmark"`
	FetchedCount int32          `json:"fetchedCount"`
}

// Event payloads. Each notification kind carries a fixed, strongly typed
// field set and is emitted under its own event name.

// InstitutionAddedEvent is emitted when the owner registers an institution.
type InstitutionAddedEvent struct {
	Institution string `json:"institution"`
	Name        string `json:"name"`
}

// CertificateIssuedEvent is emitted when an institution issues a certificate.
type CertificateIssuedEvent struct {
	CertificateID      string `json:"certificateId"`
	StudentName        string `json:"studentName"`
	CourseName         string `json:"courseName"`
	IssuingInstitution string `json:"issuingInstitution"`
}

// CertificateRevokedEvent is emitted when the issuing institution revokes a certificate.
type CertificateRevokedEvent struct {
	CertificateID      string `json:"certificateId"`
	IssuingInstitution string `json:"issuingInstitution"`
}
