package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the
// stub. This is the registry's only clock: the substrate assigns it during
// ordering, so it is deterministic across endorsers and monotonic across the
// ledger.
func (s *CredentialRegistryContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

// getCurrentActorInfo resolves the identity of the transaction invoker.
func (s *CredentialRegistryContract) getCurrentActorInfo(ctx contractapi.TransactionContextInterface) (*actorInfo, error) {
	im := NewInstitutionManager(ctx)
	fullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's FullID: %w", err)
	}
	mspID, err := ctx.GetClientIdentity().GetMSPID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's MSPID: %w", err)
	}
	return &actorInfo{fullID: fullID, mspID: mspID}, nil
}

// createCertificateCompositeKey creates a composite key for a certificate.
func (s *CredentialRegistryContract) createCertificateCompositeKey(ctx contractapi.TransactionContextInterface, certificateID string) (string, error) {
	certificateID = strings.TrimSpace(certificateID)
	if certificateID == "" {
		return "", fmt.Errorf("%w: certificateID cannot be empty", ErrInvalidArgument)
	}
	return ctx.GetStub().CreateCompositeKey(certificateObjectType, []string{certificateID})
}

// --- Validation Helper Functions ---

func (s *CredentialRegistryContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidArgument, field)
	}
	if len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidArgument, field, max)
	}
	return nil
}

func (s *CredentialRegistryContract) validateOptionalString(input, field string, max int) error {
	if input != "" && len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidArgument, field, max)
	}
	return nil
}

// isNotFound reports whether err represents a NotFound condition.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// emitRegistryEvent sends a chaincode event with a typed payload. Emission
// failure is logged, never surfaced: the state mutation has already been
// written and must not be rolled back over a notification.
func emitRegistryEvent(ctx contractapi.TransactionContextInterface, eventName string, payload interface{}) {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitRegistryEvent: Failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitRegistryEvent: Failed to set event '%s': %v", eventName, errSet)
	}
}
