package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"credregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Issuance Operations ---

// IssueCertificate mints a new certificate for the calling institution and
// returns its identifier. The returned id is the only handle for later
// verification and revocation, so the client must surface it durably.
func (s *CredentialRegistryContract) IssueCertificate(ctx contractapi.TransactionContextInterface,
	studentName, courseName, certificateHash string) (string, error) {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to get actor info: %w", err)
	}
	im := NewInstitutionManager(ctx)
	authorized, err := im.IsAuthorized(actor.fullID)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to check authorization for '%s': %w", actor.fullID, err)
	}
	if !authorized {
		return "", fmt.Errorf("%w: caller '%s' is not an authorized institution", ErrUnauthorized, actor.fullID)
	}

	if err := s.validateRequiredString(studentName, "studentName", maxStringInputLength); err != nil {
		return "", err
	}
	if err := s.validateRequiredString(courseName, "courseName", maxStringInputLength); err != nil {
		return "", err
	}
	// certificateHash is an opaque fingerprint of an off-registry document:
	// stored and returned, never interpreted.
	if err := s.validateOptionalString(certificateHash, "certificateHash", maxHashInputLength); err != nil {
		return "", err
	}

	logger.Infof("Institution '%s' issuing certificate for student '%s', course '%s'", actor.fullID, studentName, courseName)

	certificateID, err := s.nextCertificateID(ctx)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to get transaction timestamp: %w", err)
	}

	institutionName := ""
	if inst, instErr := im.GetInstitution(actor.fullID); instErr == nil {
		institutionName = inst.Name
	}

	certificate := model.Certificate{
		ObjectType:             certificateObjectType,
		ID:                     certificateID,
		StudentName:            studentName,
		CourseName:             courseName,
		CertificateHash:        certificateHash,
		IssueDate:              now,
		IsValid:                true,
		IssuingInstitution:     actor.fullID,
		IssuingInstitutionName: institutionName,
	}

	certificateKey, err := s.createCertificateCompositeKey(ctx, certificateID)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to create composite key for certificate '%s': %w", certificateID, err)
	}
	certificateBytes, err := json.Marshal(certificate)
	if err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to marshal certificate '%s': %w", certificateID, err)
	}
	if err := ctx.GetStub().PutState(certificateKey, certificateBytes); err != nil {
		return "", fmt.Errorf("IssueCertificate: failed to save certificate '%s' to ledger: %w", certificateID, err)
	}

	emitRegistryEvent(ctx, eventCertificateIssued, model.CertificateIssuedEvent{
		CertificateID:      certificateID,
		StudentName:        studentName,
		CourseName:         courseName,
		IssuingInstitution: actor.fullID,
	})
	logger.Infof("Certificate '%s' issued successfully by institution '%s'", certificateID, actor.fullID)
	return certificateID, nil
}

// nextCertificateID advances the persisted sequence and returns the new id.
// Ids are assigned from a monotonic uint64 counter, so they are globally
// unique for the lifetime of the registry and never reused.
func (s *CredentialRegistryContract) nextCertificateID(ctx contractapi.TransactionContextInterface) (string, error) {
	seqBytes, err := ctx.GetStub().GetState(certificateSequenceKey)
	if err != nil {
		return "", fmt.Errorf("failed to read certificate sequence: %w", err)
	}

	var last uint64
	if seqBytes != nil {
		last, err = strconv.ParseUint(string(seqBytes), 10, 64)
		if err != nil {
			return "", fmt.Errorf("corrupt certificate sequence value '%s': %w", string(seqBytes), err)
		}
	}
	if last == math.MaxUint64 {
		return "", fmt.Errorf("%w: certificate sequence reached %d", ErrCapacityExceeded, last)
	}

	next := last + 1
	nextStr := strconv.FormatUint(next, 10)
	if err := ctx.GetStub().PutState(certificateSequenceKey, []byte(nextStr)); err != nil {
		return "", fmt.Errorf("failed to advance certificate sequence: %w", err)
	}
	return nextStr, nil
}
