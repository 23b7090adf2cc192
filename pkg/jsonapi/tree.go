package jsonapi

import (
	"sort"
	"strconv"
	"strings"
)

// nodeOrder extracts the node number from an eventsById key. Keys are
// either plain node ids ("3") or "#<updateId>:<node>".
func nodeOrder(key string) (int64, bool) {
	if n, err := strconv.ParseInt(key, 10, 64); err == nil {
		return n, true
	}
	if strings.HasPrefix(key, "#") {
		if index := strings.LastIndex(key, ":"); index >= 0 {
			if n, err := strconv.ParseInt(key[index+1:], 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// SortedEventKeys returns the keys of events in node order. Keys without a
// node number sort after numbered ones, lexically.
func SortedEventKeys(events map[string]TreeEvent) []string {
	keys := make([]string, 0, len(events))
	for key := range events {
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		left, leftOK := nodeOrder(keys[i])
		right, rightOK := nodeOrder(keys[j])
		switch {
		case leftOK && rightOK && left != right:
			return left < right
		case leftOK != rightOK:
			return leftOK
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// Events returns the tree's events in node order with Key populated.
func (t *TransactionTree) Events() []TreeEvent {
	if t == nil {
		return nil
	}
	keys := SortedEventKeys(t.EventsByID)
	events := make([]TreeEvent, 0, len(keys))
	for _, key := range keys {
		event := t.EventsByID[key]
		event.Key = key
		events = append(events, event)
	}
	return events
}

// MatchesTemplate reports whether templateID names the entity suffix, given
// as "Module:Entity". Package references ("#name" or a package hash) are
// ignored.
func MatchesTemplate(templateID string, suffix string) bool {
	if suffix == "" {
		return true
	}
	return templateID == suffix || strings.HasSuffix(templateID, ":"+suffix)
}

// FirstCreated returns the first created event whose template matches
// templateSuffix. An empty suffix matches any template.
func (t *TransactionTree) FirstCreated(templateSuffix string) (*CreatedEvent, bool) {
	for _, event := range t.Events() {
		if event.Created != nil && MatchesTemplate(event.Created.TemplateID, templateSuffix) {
			return event.Created, true
		}
	}
	return nil, false
}

// FirstExercised returns the first exercised event for choice. An empty
// choice matches any exercise.
func (t *TransactionTree) FirstExercised(choice string) (*ExercisedEvent, bool) {
	for _, event := range t.Events() {
		if event.Exercised != nil && (choice == "" || event.Exercised.Choice == choice) {
			return event.Exercised, true
		}
	}
	return nil, false
}

// CreatedContractIDs returns, in node order, the contract ids of created
// events whose template matches templateSuffix.
func (t *TransactionTree) CreatedContractIDs(templateSuffix string) []string {
	var ids []string
	for _, event := range t.Events() {
		if event.Created != nil && MatchesTemplate(event.Created.TemplateID, templateSuffix) {
			ids = append(ids, event.Created.ContractID)
		}
	}
	return ids
}

// RootEvents returns the events that are not descendants of an exercise,
// in node order.
func (t *TransactionTree) RootEvents() []TreeEvent {
	events := t.Events()
	if !hasNodeIDs(events) {
		return events
	}
	var roots []TreeEvent
	coveredUntil := -1
	for _, event := range events {
		node := event.NodeID()
		if node <= coveredUntil {
			continue
		}
		roots = append(roots, event)
		if event.Exercised != nil && event.Exercised.LastDescendantNodeID > coveredUntil {
			coveredUntil = event.Exercised.LastDescendantNodeID
		}
	}
	return roots
}

// Children returns the direct children of an exercised event, in node order.
func (t *TransactionTree) Children(parent TreeEvent) []TreeEvent {
	if parent.Exercised == nil || !hasNodeIDs(t.Events()) {
		return nil
	}
	first := parent.Exercised.NodeID
	last := parent.Exercised.LastDescendantNodeID
	var children []TreeEvent
	coveredUntil := first
	for _, event := range t.Events() {
		node := event.NodeID()
		if node <= coveredUntil || node > last {
			continue
		}
		children = append(children, event)
		if event.Exercised != nil && event.Exercised.LastDescendantNodeID > coveredUntil {
			coveredUntil = event.Exercised.LastDescendantNodeID
		} else {
			coveredUntil = node
		}
	}
	return children
}

// hasNodeIDs reports whether events carry distinct node ids. Trees from
// participants that omit them are treated as flat.
func hasNodeIDs(events []TreeEvent) bool {
	if len(events) <= 1 {
		return true
	}
	for _, event := range events {
		if event.NodeID() != 0 {
			return true
		}
	}
	return false
}
