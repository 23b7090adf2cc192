package jsonapi

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Command is one entry of a command submission. Exactly one of Create and
// Exercise is set.
type Command struct {
	Create   *CreateCommand
	Exercise *ExerciseCommand
}

type CreateCommand struct {
	TemplateID      string         `json:"templateId"`
	CreateArguments map[string]any `json:"createArguments"`
}

type ExerciseCommand struct {
	TemplateID     string         `json:"templateId"`
	ContractID     string         `json:"contractId"`
	Choice         string         `json:"choice"`
	ChoiceArgument map[string]any `json:"choiceArgument"`
}

func (c Command) MarshalJSON() ([]byte, error) {
	switch {
	case c.Create != nil && c.Exercise == nil:
		create := *c.Create
		if create.CreateArguments == nil {
			create.CreateArguments = map[string]any{}
		}
		return json.Marshal(map[string]CreateCommand{"CreateCommand": create})
	case c.Exercise != nil && c.Create == nil:
		exercise := *c.Exercise
		if exercise.ChoiceArgument == nil {
			exercise.ChoiceArgument = map[string]any{}
		}
		return json.Marshal(map[string]ExerciseCommand{"ExerciseCommand": exercise})
	default:
		return nil, errors.New("command must be exactly one of CreateCommand or ExerciseCommand")
	}
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var raw struct {
		Create   *CreateCommand   `json:"CreateCommand"`
		Exercise *ExerciseCommand `json:"ExerciseCommand"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if (raw.Create == nil) == (raw.Exercise == nil) {
		return errors.New("command must be exactly one of CreateCommand or ExerciseCommand")
	}
	c.Create, c.Exercise = raw.Create, raw.Exercise
	return nil
}

// CommandRequest is the body of a command submission.
type CommandRequest struct {
	Commands  []Command `json:"commands"`
	CommandID string    `json:"commandId"`
	ActAs     []string  `json:"actAs"`
}

// Offset is a ledger offset. The ledger renders it as a number, older
// participants as a string; both decode.
type Offset string

func (o *Offset) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*o = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*o = Offset(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return errors.Wrap(err, "offset must be a number or string")
	}
	*o = Offset(number.String())
	return nil
}

func (o Offset) MarshalJSON() ([]byte, error) {
	if o == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(o), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(o) {
		return []byte(o), nil
	}
	return json.Marshal(string(o))
}

type CreatedEvent struct {
	Offset           Offset          `json:"offset,omitempty"`
	NodeID           int             `json:"nodeId"`
	ContractID       string          `json:"contractId"`
	TemplateID       string          `json:"templateId"`
	ContractKey      json.RawMessage `json:"contractKey,omitempty"`
	CreateArgument   json.RawMessage `json:"createArgument,omitempty"`
	CreatedEventBlob string          `json:"createdEventBlob,omitempty"`
	WitnessParties   []string        `json:"witnessParties,omitempty"`
	Signatories      []string        `json:"signatories,omitempty"`
	Observers        []string        `json:"observers,omitempty"`
	CreatedAt        string          `json:"createdAt,omitempty"`
	PackageName      string          `json:"packageName,omitempty"`
}

type ExercisedEvent struct {
	Offset                Offset          `json:"offset,omitempty"`
	NodeID                int             `json:"nodeId"`
	ContractID            string          `json:"contractId"`
	TemplateID            string          `json:"templateId"`
	InterfaceID           string          `json:"interfaceId,omitempty"`
	Choice                string          `json:"choice"`
	ChoiceArgument        json.RawMessage `json:"choiceArgument,omitempty"`
	ActingParties         []string        `json:"actingParties,omitempty"`
	Consuming             bool            `json:"consuming"`
	WitnessParties        []string        `json:"witnessParties,omitempty"`
	LastDescendantNodeID  int             `json:"lastDescendantNodeId"`
	ExerciseResult        json.RawMessage `json:"exerciseResult,omitempty"`
	PackageName           string          `json:"packageName,omitempty"`
	ImplementedInterfaces []string        `json:"implementedInterfaces,omitempty"`
}

// ResultString decodes the exercise result as a string, which is how a
// returned contract id is encoded.
func (e *ExercisedEvent) ResultString() (string, error) {
	var result string
	if err := json.Unmarshal(e.ExerciseResult, &result); err != nil {
		return "", errors.Wrapf(err, "exercise result of %s is not a string", e.Choice)
	}
	return result, nil
}

type ArchivedEvent struct {
	Offset                Offset   `json:"offset,omitempty"`
	NodeID                int      `json:"nodeId"`
	ContractID            string   `json:"contractId"`
	TemplateID            string   `json:"templateId"`
	WitnessParties        []string `json:"witnessParties,omitempty"`
	PackageName           string   `json:"packageName,omitempty"`
	ImplementedInterfaces []string `json:"implementedInterfaces,omitempty"`
}

// Tree event kinds as they appear on the wire.
const (
	KindCreated   = "CreatedTreeEvent"
	KindExercised = "ExercisedTreeEvent"
	KindArchived  = "ArchivedTreeEvent"
)

// TreeEvent is one node of a transaction tree.
type TreeEvent struct {
	// Key is the node's key in eventsById.
	Key  string `json:"-"`
	Kind string `json:"-"`

	Created   *CreatedEvent   `json:"-"`
	Exercised *ExercisedEvent `json:"-"`
	Archived  *ArchivedEvent  `json:"-"`

	// Raw holds the value of kinds this package does not model.
	Raw json.RawMessage `json:"-"`
}

type eventValue[T any] struct {
	Value T `json:"value"`
}

func (e *TreeEvent) UnmarshalJSON(data []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if len(wrapper) != 1 {
		return errors.Errorf("tree event must have exactly one kind, got %d", len(wrapper))
	}
	for kind, payload := range wrapper {
		e.Kind = kind
		switch kind {
		case KindCreated:
			var value eventValue[CreatedEvent]
			if err := json.Unmarshal(payload, &value); err != nil {
				return errors.Wrapf(err, "failed to decode %s", kind)
			}
			e.Created = &value.Value
		case KindExercised:
			var value eventValue[ExercisedEvent]
			if err := json.Unmarshal(payload, &value); err != nil {
				return errors.Wrapf(err, "failed to decode %s", kind)
			}
			e.Exercised = &value.Value
		case KindArchived:
			var value eventValue[ArchivedEvent]
			if err := json.Unmarshal(payload, &value); err != nil {
				return errors.Wrapf(err, "failed to decode %s", kind)
			}
			e.Archived = &value.Value
		default:
			e.Raw = append(json.RawMessage(nil), payload...)
		}
	}
	return nil
}

func (e TreeEvent) MarshalJSON() ([]byte, error) {
	switch {
	case e.Created != nil:
		return json.Marshal(map[string]eventValue[*CreatedEvent]{KindCreated: {Value: e.Created}})
	case e.Exercised != nil:
		return json.Marshal(map[string]eventValue[*ExercisedEvent]{KindExercised: {Value: e.Exercised}})
	case e.Archived != nil:
		return json.Marshal(map[string]eventValue[*ArchivedEvent]{KindArchived: {Value: e.Archived}})
	case e.Kind != "" && e.Raw != nil:
		return json.Marshal(map[string]json.RawMessage{e.Kind: e.Raw})
	default:
		return nil, errors.New("tree event has no kind")
	}
}

// ContractID returns the contract the event refers to.
func (e TreeEvent) ContractID() string {
	switch {
	case e.Created != nil:
		return e.Created.ContractID
	case e.Exercised != nil:
		return e.Exercised.ContractID
	case e.Archived != nil:
		return e.Archived.ContractID
	}
	return ""
}

// TemplateID returns the template of the event's contract.
func (e TreeEvent) TemplateID() string {
	switch {
	case e.Created != nil:
		return e.Created.TemplateID
	case e.Exercised != nil:
		return e.Exercised.TemplateID
	case e.Archived != nil:
		return e.Archived.TemplateID
	}
	return ""
}

// NodeID returns the event's node id.
func (e TreeEvent) NodeID() int {
	switch {
	case e.Created != nil:
		return e.Created.NodeID
	case e.Exercised != nil:
		return e.Exercised.NodeID
	case e.Archived != nil:
		return e.Archived.NodeID
	}
	return 0
}

// TransactionTree is a committed transaction with its events keyed by node.
type TransactionTree struct {
	UpdateID       string               `json:"updateId"`
	CommandID      string               `json:"commandId,omitempty"`
	WorkflowID     string               `json:"workflowId,omitempty"`
	EffectiveAt    string               `json:"effectiveAt,omitempty"`
	Offset         Offset               `json:"offset,omitempty"`
	EventsByID     map[string]TreeEvent `json:"eventsById"`
	RecordTime     string               `json:"recordTime,omitempty"`
	SynchronizerID string               `json:"synchronizerId,omitempty"`
}

// CommandResponse is the answer to submit-and-wait-for-transaction-tree.
type CommandResponse struct {
	TransactionTree TransactionTree `json:"transactionTree"`
}

// CreateContractResult identifies the contract a create command produced.
type CreateContractResult struct {
	ContractID string `json:"contractId"`
	UpdateID   string `json:"updateId"`
}

// TransactionTreeResponse wraps a transaction tree lookup. Raw keeps the
// response exactly as the ledger sent it.
type TransactionTreeResponse struct {
	Transaction *TransactionTree `json:"transaction"`
	Raw         json.RawMessage  `json:"-"`
}

type LocalMetadata struct {
	ResourceVersion string            `json:"resourceVersion"`
	Annotations     map[string]string `json:"annotations"`
}

type PartyDetails struct {
	Party              string         `json:"party"`
	IsLocal            bool           `json:"isLocal"`
	LocalMetadata      *LocalMetadata `json:"localMetadata,omitempty"`
	IdentityProviderID string         `json:"identityProviderId"`
}

// PartyCreationResult reports the resolved party and whether it was
// allocated by this call.
type PartyCreationResult struct {
	PartyID    string `json:"partyId"`
	IsNewParty bool   `json:"isNewParty"`
}

type CreatedEventInfo struct {
	CreatedEvent   CreatedEvent `json:"createdEvent"`
	SynchronizerID string       `json:"synchronizerId"`
}

type ArchivedEventInfo struct {
	ArchivedEvent  ArchivedEvent `json:"archivedEvent"`
	SynchronizerID string        `json:"synchronizerId"`
}

// EventsByContractIDResponse holds the create and, once archived, archive
// events of a contract.
type EventsByContractIDResponse struct {
	Created  *CreatedEventInfo  `json:"created,omitempty"`
	Archived *ArchivedEventInfo `json:"archived,omitempty"`
	Raw      json.RawMessage    `json:"-"`
}

// TreeOptions tunes transaction tree lookups by update id.
type TreeOptions struct {
	// EventFormat is "verbose" or "minimal".
	EventFormat             string `json:"eventFormat,omitempty"`
	IncludeCreatedEventBlob *bool  `json:"includeCreatedEventBlob,omitempty"`
}

// CreateCommandParams describes a contract to create.
type CreateCommandParams struct {
	TemplateID      string
	CreateArguments map[string]any
	ActAs           []string
}

// ExerciseCommandParams describes a choice to exercise.
type ExerciseCommandParams struct {
	TemplateID     string
	ContractID     string
	Choice         string
	ChoiceArgument map[string]any
	ActAs          []string
}
