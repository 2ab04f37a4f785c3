package contract

import (
	"encoding/json"
	"fmt"
	"time"

	"credregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Revocation Operations ---

// RevokeCertificate flips a certificate's validity flag to false. Only the
// institution that issued the certificate may revoke it; the registry owner
// gets no bypass. Revocation is one-way: a second attempt fails with
// AlreadyRevoked rather than silently succeeding.
func (s *CredentialRegistryContract) RevokeCertificate(ctx contractapi.TransactionContextInterface, certificateID string) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: failed to get actor info: %w", err)
	}

	if err := s.validateRequiredString(certificateID, "certificateID", maxStringInputLength); err != nil {
		return err
	}

	certificate, err := s.getCertificateByID(ctx, certificateID)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: %w", err)
	}

	if certificate.IssuingInstitution != actor.fullID {
		return fmt.Errorf("%w: only the issuing institution '%s' can revoke certificate '%s'",
			ErrUnauthorized, certificate.IssuingInstitution, certificateID)
	}

	if !certificate.IsValid {
		return fmt.Errorf("%w: certificate '%s' was revoked at %s",
			ErrAlreadyRevoked, certificateID, certificate.RevokedAt.Format(time.RFC3339))
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: failed to get transaction timestamp: %w", err)
	}

	certificate.IsValid = false
	certificate.RevokedAt = now

	certificateKey, err := s.createCertificateCompositeKey(ctx, certificateID)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: failed to create composite key for certificate '%s': %w", certificateID, err)
	}
	updatedBytes, err := json.Marshal(certificate)
	if err != nil {
		return fmt.Errorf("RevokeCertificate: failed to marshal revoked certificate '%s': %w", certificateID, err)
	}
	if err := ctx.GetStub().PutState(certificateKey, updatedBytes); err != nil {
		return fmt.Errorf("RevokeCertificate: failed to save revoked certificate '%s' to ledger: %w", certificateID, err)
	}

	emitRegistryEvent(ctx, eventCertificateRevoked, model.CertificateRevokedEvent{
		CertificateID:      certificateID,
		IssuingInstitution: actor.fullID,
	})
	logger.Infof("Certificate '%s' revoked by issuing institution '%s'", certificateID, actor.fullID)
	return nil
}
