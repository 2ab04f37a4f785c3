package contract

import (
	"credregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("credregistry.registry")

// Object types for composite keys, also usable as 'docType' for CouchDB queries.
const (
	certificateObjectType = "Certificate"
	institutionObjectType = "Institution"
	ownerObjectType       = "Owner"
)

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	maxHashInputLength   = 512 // content fingerprints can be longer than display fields
)

// certificateSequenceKey holds the last assigned certificate id.
const certificateSequenceKey = "certificateSequence"

// Event names emitted by the registry.
const (
	eventInstitutionAdded   = "InstitutionAdded"
	eventCertificateIssued  = "CertificateIssued"
	eventCertificateRevoked = "CertificateRevoked"
)

// CredentialRegistryContract provides functions for managing institutions and
// academic certificates.
// @contract:CredentialRegistryContract
type CredentialRegistryContract struct {
	contractapi.Contract
}

// actorInfo holds commonly needed details about the transaction invoker.
type actorInfo struct {
	fullID string
	mspID  string
}

// Instantiate is called during chaincode instantiation.
func (s *CredentialRegistryContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("CredentialRegistryContract Instantiated/Upgraded")
}

// --- Institution & Owner Wrappers (Delegating to InstitutionManager) ---
// Direct pass-throughs keeping the contract API surface clean; the
// authorization checks live in the manager.

func (s *CredentialRegistryContract) AddInstitution(ctx contractapi.TransactionContextInterface, identity, name string) error {
	logger.Infof("Chaincode Call: AddInstitution '%s' with name '%s'", identity, name)
	return NewInstitutionManager(ctx).AddInstitution(identity, name)
}

// IsAuthorized reports whether an identity is a registered, authorized
// institution. Pure lookup, not access-controlled.
func (s *CredentialRegistryContract) IsAuthorized(ctx contractapi.TransactionContextInterface, identity string) (bool, error) {
	logger.Debugf("Chaincode Call: IsAuthorized for '%s'", identity)
	return NewInstitutionManager(ctx).IsAuthorized(identity)
}

// GetInstitution returns the stored record for a registered institution.
func (s *CredentialRegistryContract) GetInstitution(ctx contractapi.TransactionContextInterface, identity string) (*model.Institution, error) {
	logger.Debugf("Chaincode Call: GetInstitution for '%s'", identity)
	return NewInstitutionManager(ctx).GetInstitution(identity)
}

// ListInstitutions returns all registered institutions. Public access: the
// set of trusted issuers is exactly what verifiers need to see.
func (s *CredentialRegistryContract) ListInstitutions(ctx contractapi.TransactionContextInterface) ([]model.Institution, error) {
	logger.Debug("Chaincode Call: ListInstitutions (public access)")
	return NewInstitutionManager(ctx).GetAllInstitutions()
}
