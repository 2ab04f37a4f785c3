package contract

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/hyperledger/fabric-protos-go/peer"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Test principals. Full client IDs in the same shape the peer hands to chaincode.
const (
	ownerID      = "x509::CN=registrar::OU=admin::CN=ca.example.edu"
	universityID = "x509::CN=state-university::OU=client::CN=ca.example.edu"
	collegeID    = "x509::CN=tech-college::OU=client::CN=ca.example.edu"
	strangerID   = "x509::CN=stranger::OU=client::CN=ca.example.edu"
)

// compositeKeyNamespace mirrors the stub's real composite key encoding so
// partial-key prefix scans behave the way they do on a peer.
const compositeKeyNamespace = "\x00"

type recordedEvent struct {
	name    string
	payload []byte
}

// fakeStub is an in-memory stand-in for the chaincode stub. It implements
// only what the contract touches; anything else panics through the embedded
// nil interface, which is exactly what a test should do on unexpected calls.
type fakeStub struct {
	shim.ChaincodeStubInterface

	state   map[string][]byte
	history map[string][]*queryresult.KeyModification
	events  []recordedEvent

	now   time.Time
	txSeq int
}

func newFakeStub() *fakeStub {
	return &fakeStub{
		state:   map[string][]byte{},
		history: map[string][]*queryresult.KeyModification{},
		now:     time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake transaction clock, as ordering would between blocks.
func (s *fakeStub) tick(d time.Duration) {
	s.now = s.now.Add(d)
}

func (s *fakeStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(s.now), nil
}

func (s *fakeStub) GetState(key string) ([]byte, error) {
	value, ok := s.state[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (s *fakeStub) PutState(key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.state[key] = cp
	s.txSeq++
	s.history[key] = append(s.history[key], &queryresult.KeyModification{
		TxId:      fmt.Sprintf("tx-%04d", s.txSeq),
		Timestamp: timestamppb.New(s.now),
		Value:     cp,
	})
	return nil
}

func (s *fakeStub) DelState(key string) error {
	delete(s.state, key)
	return nil
}

func (s *fakeStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	key := compositeKeyNamespace + objectType + compositeKeyNamespace
	for _, attr := range attributes {
		key += attr + compositeKeyNamespace
	}
	return key, nil
}

func (s *fakeStub) SetEvent(name string, payload []byte) error {
	s.events = append(s.events, recordedEvent{name: name, payload: payload})
	return nil
}

func (s *fakeStub) sortedKeysWithPrefix(prefix string) []string {
	keys := []string{}
	for key := range s.state {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *fakeStub) GetStateByPartialCompositeKey(objectType string, attributes []string) (shim.StateQueryIteratorInterface, error) {
	prefix, _ := s.CreateCompositeKey(objectType, attributes)
	// CreateCompositeKey appends a trailing separator only after attributes;
	// with none, the prefix already ends at the objectType separator.
	return s.iteratorFor(s.sortedKeysWithPrefix(prefix)), nil
}

func (s *fakeStub) GetStateByPartialCompositeKeyWithPagination(objectType string, attributes []string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	prefix, _ := s.CreateCompositeKey(objectType, attributes)
	keys := s.sortedKeysWithPrefix(prefix)

	start := 0
	if bookmark != "" {
		start = len(keys)
		for i, key := range keys {
			if key >= bookmark {
				start = i
				break
			}
		}
	}
	end := start + int(pageSize)
	if end > len(keys) {
		end = len(keys)
	}
	nextBookmark := ""
	if end < len(keys) {
		nextBookmark = keys[end]
	}

	page := keys[start:end]
	return s.iteratorFor(page), &peer.QueryResponseMetadata{
		FetchedRecordsCount: int32(len(page)),
		Bookmark:            nextBookmark,
	}, nil
}

// GetQueryResultWithPagination fails: the fake has no CouchDB, which forces
// the contract's composite-key fallback path, same as a LevelDB peer.
func (s *fakeStub) GetQueryResultWithPagination(query string, pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	return nil, nil, fmt.Errorf("rich queries are not supported by this state database")
}

func (s *fakeStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	mods := s.history[key]
	return &fakeHistoryIterator{mods: mods}, nil
}

func (s *fakeStub) iteratorFor(keys []string) shim.StateQueryIteratorInterface {
	kvs := make([]*queryresult.KV, 0, len(keys))
	for _, key := range keys {
		kvs = append(kvs, &queryresult.KV{Key: key, Value: s.state[key]})
	}
	return &fakeStateIterator{kvs: kvs}
}

type fakeStateIterator struct {
	kvs []*queryresult.KV
	pos int
}

func (it *fakeStateIterator) HasNext() bool { return it.pos < len(it.kvs) }

func (it *fakeStateIterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("no more items")
	}
	kv := it.kvs[it.pos]
	it.pos++
	return kv, nil
}

func (it *fakeStateIterator) Close() error { return nil }

type fakeHistoryIterator struct {
	mods []*queryresult.KeyModification
	pos  int
}

func (it *fakeHistoryIterator) HasNext() bool { return it.pos < len(it.mods) }

func (it *fakeHistoryIterator) Next() (*queryresult.KeyModification, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("no more items")
	}
	mod := it.mods[it.pos]
	it.pos++
	return mod, nil
}

func (it *fakeHistoryIterator) Close() error { return nil }

// fakeClientIdentity satisfies cid.ClientIdentity for the two methods the
// registry reads.
type fakeClientIdentity struct {
	cid.ClientIdentity

	id  string
	msp string
}

func (ci *fakeClientIdentity) GetID() (string, error)    { return ci.id, nil }
func (ci *fakeClientIdentity) GetMSPID() (string, error) { return ci.msp, nil }

// asIdentity builds a transaction context for the given caller over a shared
// stub, the way successive transactions from different principals hit the
// same world state.
func asIdentity(stub *fakeStub, identity string) *contractapi.TransactionContext {
	ctx := &contractapi.TransactionContext{}
	ctx.SetStub(stub)
	ctx.SetClientIdentity(&fakeClientIdentity{id: identity, msp: "ExampleMSP"})
	return ctx
}

// newRegistry initializes a registry with ownerID as owner and universityID
// registered as "State University".
func newRegistry(t *testing.T) (*CredentialRegistryContract, *fakeStub) {
	t.Helper()
	registry := &CredentialRegistryContract{}
	stub := newFakeStub()

	require.NoError(t, registry.InitRegistry(asIdentity(stub, ownerID)))
	stub.tick(time.Second)
	require.NoError(t, registry.AddInstitution(asIdentity(stub, ownerID), universityID, "State University"))
	stub.tick(time.Second)
	return registry, stub
}

// lastEvent returns the most recent emitted event with the given name.
func lastEvent(t *testing.T, stub *fakeStub, name string) recordedEvent {
	t.Helper()
	for i := len(stub.events) - 1; i >= 0; i-- {
		if stub.events[i].name == name {
			return stub.events[i]
		}
	}
	t.Fatalf("no event %q was emitted", name)
	return recordedEvent{}
}

func eventCount(stub *fakeStub, name string) int {
	count := 0
	for _, ev := range stub.events {
		if ev.name == name {
			count++
		}
	}
	return count
}
