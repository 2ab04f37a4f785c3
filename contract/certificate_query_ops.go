package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"credregistry/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Query Functions ---

// getCertificateByID is an internal helper to retrieve and unmarshal a certificate.
func (s *CredentialRegistryContract) getCertificateByID(ctx contractapi.TransactionContextInterface, certificateID string) (*model.Certificate, error) {
	if strings.TrimSpace(certificateID) == "" {
		return nil, fmt.Errorf("%w: certificateID cannot be empty", ErrInvalidArgument)
	}
	certificateKey, err := s.createCertificateCompositeKey(ctx, certificateID)
	if err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to create key for certificate '%s': %w", certificateID, err)
	}

	certificateBytes, err := ctx.GetStub().GetState(certificateKey)
	if err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to read certificate '%s' from ledger: %w", certificateID, err)
	}
	if certificateBytes == nil {
		return nil, fmt.Errorf("%w: certificate with ID '%s' does not exist", ErrNotFound, certificateID)
	}

	var certificate model.Certificate
	if err = json.Unmarshal(certificateBytes, &certificate); err != nil {
		return nil, fmt.Errorf("getCertificateByID: failed to unmarshal certificate '%s' data: %w", certificateID, err)
	}
	return &certificate, nil
}

// VerifyCertificate returns the full stored record for a certificate id.
// Public access, no side effects: safe to call repeatedly and concurrently.
func (s *CredentialRegistryContract) VerifyCertificate(ctx contractapi.TransactionContextInterface, certificateID string) (*model.Certificate, error) {
	logger.Debugf("VerifyCertificate: Querying certificate '%s'", certificateID)
	if err := s.validateRequiredString(certificateID, "certificateID", maxStringInputLength); err != nil {
		return nil, err
	}

	certificate, err := s.getCertificateByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	s.enrichInstitutionName(ctx, certificate)
	return certificate, nil
}

// enrichInstitutionName populates the display name of the issuer if the
// stored record predates it or the institution was renamed since issuance.
func (s *CredentialRegistryContract) enrichInstitutionName(ctx contractapi.TransactionContextInterface, certificate *model.Certificate) {
	if certificate == nil || certificate.IssuingInstitution == "" {
		return
	}
	inst, err := NewInstitutionManager(ctx).GetInstitution(certificate.IssuingInstitution)
	if err == nil && inst != nil {
		certificate.IssuingInstitutionName = inst.Name
	}
}

// GetCertificateHistory returns the committed state history of a certificate:
// every transaction that wrote it, oldest entry meaning issuance and at most
// one later entry flipping the validity flag.
func (s *CredentialRegistryContract) GetCertificateHistory(ctx contractapi.TransactionContextInterface, certificateID string) ([]model.CertificateHistoryEntry, error) {
	logger.Debugf("GetCertificateHistory: Querying history for certificate '%s'", certificateID)
	if err := s.validateRequiredString(certificateID, "certificateID", maxStringInputLength); err != nil {
		return nil, err
	}
	// Existence check first so an unknown id is NotFound, not an empty history.
	if _, err := s.getCertificateByID(ctx, certificateID); err != nil {
		return nil, err
	}

	certificateKey, err := s.createCertificateCompositeKey(ctx, certificateID)
	if err != nil {
		return nil, fmt.Errorf("GetCertificateHistory: failed to create key for certificate '%s': %w", certificateID, err)
	}
	historyIter, err := ctx.GetStub().GetHistoryForKey(certificateKey)
	if err != nil {
		return nil, fmt.Errorf("GetCertificateHistory: failed to get history for certificate '%s': %w", certificateID, err)
	}
	defer historyIter.Close()

	entries := []model.CertificateHistoryEntry{}
	for historyIter.HasNext() {
		historyItem, iterErr := historyIter.Next()
		if iterErr != nil {
			logger.Warningf("GetCertificateHistory: Error iterating history for '%s': %v. Skipping entry.", certificateID, iterErr)
			continue
		}
		var pastState model.Certificate
		_ = json.Unmarshal(historyItem.Value, &pastState)

		entries = append(entries, model.CertificateHistoryEntry{
			TxID:      historyItem.TxId,
			Timestamp: historyItem.Timestamp.AsTime(),
			IsDelete:  historyItem.IsDelete,
			IsValid:   pastState.IsValid,
			Value:     string(historyItem.Value),
		})
	}
	// Peers return history in storage order; normalize to oldest-first so the
	// first entry is always issuance.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// ListMyCertificates returns certificates issued by the calling institution,
// paginated. Tries a CouchDB rich query first and falls back to a paginated
// composite-key scan with client-side filtering on LevelDB peers.
func (s *CredentialRegistryContract) ListMyCertificates(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (*model.PaginatedCertificateResponse, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListMyCertificates: failed to get actor info: %w", err)
	}

	pageSize, err := strconv.ParseInt(pageSizeStr, 10, 32)
	if err != nil || pageSize <= 0 {
		logger.Warningf("ListMyCertificates: Invalid pageSize '%s', using default of 10. Error: %v", pageSizeStr, err)
		pageSize = 10
	}
	if pageSize > 100 {
		logger.Warningf("ListMyCertificates: Requested pageSize %d exceeds max of 100. Capping at 100.", pageSize)
		pageSize = 100
	}

	logger.Debugf("ListMyCertificates: issuer '%s', pageSize %d, bookmark '%s'", actor.fullID, pageSize, bookmark)

	queryString := fmt.Sprintf(`{"selector":{"objectType":"%s","issuingInstitution":"%s"}}`, certificateObjectType, actor.fullID)
	resultsIterator, metadata, err := ctx.GetStub().GetQueryResultWithPagination(queryString, int32(pageSize), bookmark)
	if err != nil {
		logger.Warningf("ListMyCertificates: CouchDB query for issuer '%s' failed: %v. Falling back to composite-key scan.", actor.fullID, err)
		return s.listMyCertificatesByScan(ctx, actor.fullID, int32(pageSize), bookmark)
	}
	defer resultsIterator.Close()

	certificates := []*model.Certificate{}
	var fetched int32
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("ListMyCertificates: Error iterating CouchDB results: %v. Skipping.", iterErr)
			continue
		}
		var certificate model.Certificate
		if errUnmarshal := json.Unmarshal(queryResponse.Value, &certificate); errUnmarshal != nil {
			logger.Warningf("ListMyCertificates: Error unmarshalling certificate: %v. Skipping.", errUnmarshal)
			continue
		}
		certificates = append(certificates, &certificate)
		fetched++
	}

	return &model.PaginatedCertificateResponse{
		Certificates: certificates,
		NextBookmark: metadata.GetBookmark(),
		FetchedCount: fetched,
	}, nil
}

// listMyCertificatesByScan pages over all certificates by composite key and
// filters for the issuer. Slower than the rich query; correctness matches.
func (s *CredentialRegistryContract) listMyCertificatesByScan(ctx contractapi.TransactionContextInterface, issuerFullID string, pageSize int32, bookmark string) (*model.PaginatedCertificateResponse, error) {
	resultsIterator, metadata, err := ctx.GetStub().GetStateByPartialCompositeKeyWithPagination(certificateObjectType, []string{}, pageSize, bookmark)
	if err != nil {
		return nil, fmt.Errorf("ListMyCertificates: paginated composite-key scan failed: %w", err)
	}
	defer resultsIterator.Close()

	certificates := []*model.Certificate{}
	var fetched int32
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("ListMyCertificates fallback: Error iterating results: %v. Skipping.", iterErr)
			continue
		}
		var certificate model.Certificate
		if errUnmarshal := json.Unmarshal(queryResponse.Value, &certificate); errUnmarshal != nil {
			logger.Warningf("ListMyCertificates fallback: Error unmarshalling certificate: %v. Skipping.", errUnmarshal)
			continue
		}
		if certificate.IssuingInstitution == issuerFullID {
			certificates = append(certificates, &certificate)
			fetched++
		}
	}

	return &model.PaginatedCertificateResponse{
		Certificates: certificates,
		NextBookmark: metadata.GetBookmark(),
		FetchedCount: fetched,
	}, nil
}
