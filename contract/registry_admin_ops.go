package contract

import (
	"errors"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Registry Bootstrap ---

// InitRegistry fixes the caller as the registry owner. Must be invoked once,
// right after instantiation; re-running it fails so ownership can never be
// reassigned through this path.
func (s *CredentialRegistryContract) InitRegistry(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Attempting to initialize registry with owner identity...")
	im := NewInstitutionManager(ctx)

	ownerAlreadyExists, err := im.OwnerExists()
	if err != nil {
		return fmt.Errorf("InitRegistry: failed to check for existing owner: %w", err)
	}
	if ownerAlreadyExists {
		msg := "registry already has an owner. InitRegistry should not be re-run."
		logger.Info(msg)
		return errors.New(msg)
	}

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("InitRegistry: failed to get caller identity: %w", err)
	}

	if err := im.SetOwner(actor.fullID); err != nil {
		return fmt.Errorf("InitRegistry: %w", err)
	}
	logger.Infof("Registry initialized. Identity '%s' (MSP '%s') is now the owner.", actor.fullID, actor.mspID)
	return nil
}

// GetRegistryOwner returns the full client ID of the registry owner.
// Public read: verifiers may want to know which identity anchors the trust set.
func (s *CredentialRegistryContract) GetRegistryOwner(ctx contractapi.TransactionContextInterface) (string, error) {
	logger.Debug("Chaincode Call: GetRegistryOwner (public access)")
	return NewInstitutionManager(ctx).GetOwner()
}
