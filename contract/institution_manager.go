package contract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"credregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var instLogger = flogging.MustGetLogger("credregistry.institutions")

// ownerSingletonAttr keys the single Owner record. The registry has exactly
// one administrative identity, fixed at InitRegistry time.
const ownerSingletonAttr = "registry"

// InstitutionManager handles the owner identity and the set of registered
// institutions with their authorization flags.
type InstitutionManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewInstitutionManager creates a new instance of InstitutionManager.
func NewInstitutionManager(ctx contractapi.TransactionContextInterface) *InstitutionManager {
	return &InstitutionManager{Ctx: ctx}
}

// --- Internal Helper Functions ---

func (im *InstitutionManager) getCurrentTxTimestamp() (time.Time, error) {
	ts, err := im.Ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

func isLikelyClientID(id string) bool {
	// Basic check, can be enhanced if specific X.509 formats are enforced.
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6") // "eDUwOTo6" is "x509::" base64 encoded
}

// --- Key Creation Helpers (using Composite Keys) ---

func (im *InstitutionManager) createInstitutionCompositeKey(fullID string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(institutionObjectType, []string{fullID})
}

func (im *InstitutionManager) createOwnerCompositeKey() (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(ownerObjectType, []string{ownerSingletonAttr})
}

// --- Owner Identity ---

// OwnerExists reports whether the registry owner has been fixed yet.
func (im *InstitutionManager) OwnerExists() (bool, error) {
	ownerKey, err := im.createOwnerCompositeKey()
	if err != nil {
		return false, fmt.Errorf("failed to create owner composite key: %w", err)
	}
	ownerBytes, err := im.Ctx.GetStub().GetState(ownerKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking for registry owner: %w", err)
	}
	return ownerBytes != nil, nil
}

// GetOwner returns the full client ID of the registry owner.
func (im *InstitutionManager) GetOwner() (string, error) {
	ownerKey, err := im.createOwnerCompositeKey()
	if err != nil {
		return "", fmt.Errorf("failed to create owner composite key: %w", err)
	}
	ownerBytes, err := im.Ctx.GetStub().GetState(ownerKey)
	if err != nil {
		return "", fmt.Errorf("ledger error retrieving registry owner: %w", err)
	}
	if ownerBytes == nil {
		return "", fmt.Errorf("%w: registry owner has not been initialized", ErrNotFound)
	}
	return string(ownerBytes), nil
}

// SetOwner fixes the registry owner. Owner identity is immutable: this fails
// once an owner record exists.
func (im *InstitutionManager) SetOwner(fullID string) error {
	exists, err := im.OwnerExists()
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: registry owner is already set and cannot be reassigned", ErrUnauthorized)
	}
	ownerKey, err := im.createOwnerCompositeKey()
	if err != nil {
		return fmt.Errorf("failed to create owner composite key: %w", err)
	}
	if err := im.Ctx.GetStub().PutState(ownerKey, []byte(fullID)); err != nil {
		return fmt.Errorf("failed to save registry owner '%s': %w", fullID, err)
	}
	instLogger.Infof("Registry owner fixed to '%s'", fullID)
	return nil
}

// IsOwner reports whether the given identity is the registry owner. False if
// no owner has been set yet.
func (im *InstitutionManager) IsOwner(fullID string) (bool, error) {
	owner, err := im.GetOwner()
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return owner == fullID, nil
}

// --- Institution Management ---

// AddInstitution registers (or updates) an institution with authorized=true.
// Caller must be the registry owner. Re-adding an existing identity is an
// idempotent upsert: the name is refreshed, AddedBy/AddedAt are preserved.
func (im *InstitutionManager) AddInstitution(targetFullID, name string) error {
	callerFullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return fmt.Errorf("failed to get caller's FullID for AddInstitution: %w", err)
	}
	isCallerOwner, err := im.IsOwner(callerFullID)
	if err != nil {
		return fmt.Errorf("failed to verify caller owner status for AddInstitution: %w", err)
	}
	if !isCallerOwner {
		return fmt.Errorf("%w: caller '%s' is not the registry owner", ErrUnauthorized, callerFullID)
	}

	targetFullID = strings.TrimSpace(targetFullID)
	if targetFullID == "" {
		return fmt.Errorf("%w: institution identity cannot be empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: institution name cannot be empty", ErrInvalidArgument)
	}
	if len(name) > maxStringInputLength {
		return fmt.Errorf("%w: institution name exceeds max length %d", ErrInvalidArgument, maxStringInputLength)
	}
	if !isLikelyClientID(targetFullID) {
		instLogger.Warningf("Institution identity '%s' does not appear to be a standard X.509 client ID.", targetFullID)
	}

	now, err := im.getCurrentTxTimestamp()
	if err != nil {
		return err
	}

	institutionKey, err := im.createInstitutionCompositeKey(targetFullID)
	if err != nil {
		return fmt.Errorf("failed to create institution composite key for '%s': %w", targetFullID, err)
	}
	existingBytes, err := im.Ctx.GetStub().GetState(institutionKey)
	if err != nil {
		return fmt.Errorf("failed to get institution state for '%s': %w", targetFullID, err)
	}

	var inst model.Institution
	if existingBytes == nil {
		inst = model.Institution{
			ObjectType:    institutionObjectType,
			ID:            targetFullID,
			Name:          name,
			Authorized:    true,
			AddedBy:       callerFullID,
			AddedAt:       now,
			LastUpdatedAt: now,
		}
		instLogger.Infof("Registering new institution '%s' (%s) by owner '%s'", name, targetFullID, callerFullID)
	} else {
		if err := json.Unmarshal(existingBytes, &inst); err != nil {
			return fmt.Errorf("failed to unmarshal existing Institution for '%s': %w", targetFullID, err)
		}
		inst.Name = name
		inst.Authorized = true
		inst.LastUpdatedAt = now
		// inst.AddedBy and inst.AddedAt remain from original registration
		instLogger.Infof("Updating existing institution '%s' (%s). Updated by '%s'", name, targetFullID, callerFullID)
	}

	updatedBytes, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal Institution for '%s': %w", targetFullID, err)
	}
	if err := im.Ctx.GetStub().PutState(institutionKey, updatedBytes); err != nil {
		return fmt.Errorf("failed to save Institution for '%s': %w", targetFullID, err)
	}

	emitRegistryEvent(im.Ctx, eventInstitutionAdded, model.InstitutionAddedEvent{
		Institution: targetFullID,
		Name:        name,
	})
	return nil
}

// GetInstitution returns the stored record for an institution identity.
func (im *InstitutionManager) GetInstitution(identity string) (*model.Institution, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("%w: institution identity cannot be empty", ErrInvalidArgument)
	}
	institutionKey, err := im.createInstitutionCompositeKey(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create institution composite key for '%s': %w", identity, err)
	}
	instBytes, err := im.Ctx.GetStub().GetState(institutionKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving Institution for '%s': %w", identity, err)
	}
	if instBytes == nil {
		return nil, fmt.Errorf("%w: institution '%s' is not registered", ErrNotFound, identity)
	}
	var inst model.Institution
	if err := json.Unmarshal(instBytes, &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Institution for '%s': %w", identity, err)
	}
	return &inst, nil
}

// IsAuthorized reports whether an identity is a registered institution with
// its authorization flag set. Unknown identities are simply not authorized.
func (im *InstitutionManager) IsAuthorized(identity string) (bool, error) {
	inst, err := im.GetInstitution(identity)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("error resolving institution '%s' for authorization check: %w", identity, err)
	}
	return inst.Authorized, nil
}

// GetAllInstitutions returns every registered institution record.
func (im *InstitutionManager) GetAllInstitutions() ([]model.Institution, error) {
	resultsIterator, err := im.Ctx.GetStub().GetStateByPartialCompositeKey(institutionObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get institutions iterator using objectType '%s': %w", institutionObjectType, err)
	}
	defer resultsIterator.Close()

	institutions := []model.Institution{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			instLogger.Warningf("Failed to get next institution from iterator: %v. Skipping.", iterErr)
			continue
		}
		var inst model.Institution
		if err := json.Unmarshal(queryResponse.Value, &inst); err != nil {
			instLogger.Warningf("Failed to unmarshal institution data for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		institutions = append(institutions, inst)
	}
	instLogger.Debugf("Retrieved %d registered institutions.", len(institutions))
	return institutions, nil // Will be [] if empty, not null
}

// GetCurrentIdentityFullID retrieves the full client ID of the current transactor.
func (im *InstitutionManager) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := im.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", fmt.Errorf("%w: client identity is nil from context", ErrUnauthorized)
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" { // GetID can sometimes return empty string without error if not properly set up
		return "", fmt.Errorf("%w: client identity ID from context is empty", ErrUnauthorized)
	}
	if !isLikelyClientID(id) {
		instLogger.Warningf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	return id, nil
}
