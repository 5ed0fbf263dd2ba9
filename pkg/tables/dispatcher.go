// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package tables dispatches table operations to the device, translating
// caller buffers with the match key and action data codecs on the way in and
// serializing fetched entries on the way out.
package tables

import (
	"context"
	"errors"
	"math"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opiproject/opi-pi-tables/pkg/actiondata"
	"github.com/opiproject/opi-pi-tables/pkg/device"
	"github.com/opiproject/opi-pi-tables/pkg/entries"
	"github.com/opiproject/opi-pi-tables/pkg/eventbus"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info"
	"github.com/opiproject/opi-pi-tables/pkg/status"
)

const tracerName = "github.com/opiproject/opi-pi-tables/pkg/tables"

// maxPriority is the largest priority the device interface carries.
const maxPriority = math.MaxInt32

var errNilEntry = errors.New("nil entry")

// TableEntry is the action part of an entry to add, plus its properties.
// Action is used when set, otherwise IndirectHandle.
type TableEntry struct {
	Action         *actiondata.ActionData
	IndirectHandle uint64
	Priority       *uint32
}

// DefaultEntry is a table's default action as returned by GetDefaultAction.
// The caller hands it back with DefaultActionDone.
type DefaultEntry struct {
	Type           device.ActionEntryType
	Action         actiondata.ActionData
	IndirectHandle uint64

	released bool
}

// Dispatcher routes table operations to a Device.
type Dispatcher struct {
	Schema     p4info.Lookup
	Device     device.Device
	Serializer *entries.Serializer
	// Events receives an event per successful mutation. Optional.
	Events *eventbus.EventBus

	tracer trace.Tracer
}

// NewDispatcher returns a Dispatcher. events may be nil.
func NewDispatcher(schema p4info.Lookup, dev device.Device, serializer *entries.Serializer, events *eventbus.EventBus) *Dispatcher {
	return &Dispatcher{
		Schema:     schema,
		Device:     dev,
		Serializer: serializer,
		Events:     events,
		tracer:     otel.Tracer(tracerName),
	}
}

func (d *Dispatcher) start(ctx context.Context, op string, tableID uint32) (context.Context, trace.Span) {
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d.tracer.Start(ctx, op, trace.WithAttributes(attribute.Int64("p4.table_id", int64(tableID))))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (d *Dispatcher) table(op string, id uint32) (*p4info.Table, error) {
	t, ok := d.Schema.Table(id)
	if !ok {
		return nil, status.Errorf(status.InvalidTableID, op, "", "table id %d", id)
	}
	return t, nil
}

// resolveAction looks up ad's action and slices its data into parameters.
func (d *Dispatcher) resolveAction(op string, t *p4info.Table, ad *actiondata.ActionData) (*p4info.Action, [][]byte, error) {
	a, ok := d.Schema.Action(ad.ActionID)
	if !ok || !t.HasAction(ad.ActionID) {
		return nil, nil, status.Errorf(status.InvalidActionID, op, t.Name, "action id %d", ad.ActionID)
	}
	params, err := actiondata.Unpack(ad.Data, a.Bitwidths())
	if err != nil {
		return nil, nil, status.Wrap(status.SchemaViolation, op, t.Name, err)
	}
	return a, params, nil
}

// deviceError maps a device failure into the target status range.
func deviceError(op string, t *p4info.Table, err error) error {
	var oe *device.OperationError
	if errors.As(err, &oe) {
		log.Errorf("Invalid table (%s) operation (%d): %s", t.Name, int(oe.Code), oe.Code)
		return &status.Error{
			Status:      status.FromTarget(int(oe.Code)),
			Op:          op,
			Table:       t.Name,
			Description: oe.Error(),
			Err:         err,
		}
	}
	log.Errorf("Table %s operation %s failed: %v", t.Name, op, err)
	return status.Wrap(status.Unknown, op, t.Name, err)
}

func (d *Dispatcher) publish(kind eventbus.EventKind, t *p4info.Table, handle uint64) {
	if d.Events != nil {
		d.Events.Publish(eventbus.NewTableEvent(kind, t.Name, handle))
	}
}

// AddEntry decodes matchKey, adds the entry and returns its handle. When the
// key has a ternary or range field the priority is sent, 0 if not given.
// overwrite is accepted for API compatibility and not acted upon.
func (d *Dispatcher) AddEntry(ctx context.Context, tableID uint32, matchKey []byte, entry TableEntry, overwrite bool) (handle uint64, err error) {
	const op = "AddEntry"
	ctx, span := d.start(ctx, op, tableID)
	defer func() { finish(span, err) }()

	t, err := d.table(op, tableID)
	if err != nil {
		return 0, err
	}
	key, requiresPriority, err := matchkey.Decode(matchKey, t.Descriptors())
	if err != nil {
		return 0, status.Wrap(status.SchemaViolation, op, t.Name, err)
	}

	var opts device.EntryOptions
	if requiresPriority {
		var prio int32
		if entry.Priority != nil {
			if *entry.Priority > maxPriority {
				return 0, status.Errorf(status.SchemaViolation, op, t.Name, "priority %d exceeds %d", *entry.Priority, maxPriority)
			}
			prio = int32(*entry.Priority)
		}
		opts.Priority = &prio
	}
	if overwrite {
		log.Debugf("tables: overwrite requested on %s, adding as usual", t.Name)
	}

	if entry.Action != nil {
		var a *p4info.Action
		var params [][]byte
		if a, params, err = d.resolveAction(op, t, entry.Action); err != nil {
			return 0, err
		}
		handle, err = d.Device.AddEntry(ctx, t.Name, key, a.Name, params, opts)
	} else {
		handle, err = d.Device.AddIndirectEntry(ctx, t.Name, key, entry.IndirectHandle, opts)
	}
	if err != nil {
		return 0, deviceError(op, t, err)
	}

	span.SetAttributes(attribute.Int64("p4.handle", int64(handle)))
	d.publish(eventbus.EntryAdded, t, handle)
	return handle, nil
}

// SetDefaultAction sets the table's default action. A table with a fixed
// default action rejects any other action without contacting the device.
func (d *Dispatcher) SetDefaultAction(ctx context.Context, tableID uint32, ad actiondata.ActionData) (err error) {
	const op = "SetDefaultAction"
	ctx, span := d.start(ctx, op, tableID)
	defer func() { finish(span, err) }()

	t, err := d.table(op, tableID)
	if err != nil {
		return err
	}
	if t.HasConstDefaultAction() && ad.ActionID != t.ConstDefaultActionID {
		return status.Errorf(status.ConstDefaultAction, op, t.Name,
			"action %d requested, table fixes action %d", ad.ActionID, t.ConstDefaultActionID)
	}
	a, params, err := d.resolveAction(op, t, &ad)
	if err != nil {
		return err
	}
	if err = d.Device.SetDefaultAction(ctx, t.Name, a.Name, params); err != nil {
		return deviceError(op, t, err)
	}
	d.publish(eventbus.DefaultActionSet, t, 0)
	return nil
}

// GetDefaultAction returns the table's default action, with Type
// device.ActionEntryNone when none is set.
func (d *Dispatcher) GetDefaultAction(ctx context.Context, tableID uint32) (de *DefaultEntry, err error) {
	const op = "GetDefaultAction"
	ctx, span := d.start(ctx, op, tableID)
	defer func() { finish(span, err) }()

	t, err := d.table(op, tableID)
	if err != nil {
		return nil, err
	}
	ae, err := d.Device.GetDefaultEntry(ctx, t.Name)
	if err != nil {
		return nil, deviceError(op, t, err)
	}
	if ae == nil {
		return &DefaultEntry{Type: device.ActionEntryNone}, nil
	}

	switch ae.Type {
	case device.ActionEntryData:
		a, ok := d.Schema.ActionByName(ae.ActionName)
		if !ok {
			return nil, status.Errorf(status.InvalidActionID, op, t.Name, "device returned unknown action %q", ae.ActionName)
		}
		data, err := actiondata.Pack(ae.Params, a.Bitwidths())
		if err != nil {
			return nil, status.Wrap(status.SchemaViolation, op, t.Name, err)
		}
		return &DefaultEntry{Type: device.ActionEntryData, Action: actiondata.ActionData{ActionID: a.ID, Data: data}}, nil
	case device.ActionEntryIndirect:
		return &DefaultEntry{Type: device.ActionEntryIndirect, IndirectHandle: ae.IndirectHandle}, nil
	default:
		return &DefaultEntry{Type: device.ActionEntryNone}, nil
	}
}

// DefaultActionDone releases an entry returned by GetDefaultAction.
func (d *Dispatcher) DefaultActionDone(de *DefaultEntry) error {
	if de == nil {
		return errNilEntry
	}
	if de.released {
		return entries.ErrReleased
	}
	de.released = true
	de.Action.Data = nil
	return nil
}

// DeleteEntry removes the entry with handle from the table.
func (d *Dispatcher) DeleteEntry(ctx context.Context, tableID uint32, handle uint64) (err error) {
	const op = "DeleteEntry"
	ctx, span := d.start(ctx, op, tableID)
	defer func() { finish(span, err) }()

	t, err := d.table(op, tableID)
	if err != nil {
		return err
	}
	if err = d.Device.DeleteEntry(ctx, t.Name, handle); err != nil {
		return deviceError(op, t, err)
	}
	d.publish(eventbus.EntryDeleted, t, handle)
	return nil
}

// ModifyEntry replaces the action of the entry with handle.
func (d *Dispatcher) ModifyEntry(ctx context.Context, tableID uint32, handle uint64, ad actiondata.ActionData) (err error) {
	const op = "ModifyEntry"
	ctx, span := d.start(ctx, op, tableID)
	defer func() { finish(span, err) }()

	t, err := d.table(op, tableID)
	if err != nil {
		return err
	}
	a, params, err := d.resolveAction(op, t, &ad)
	if err != nil {
		return err
	}
	if err = d.Device.ModifyEntry(ctx, t.Name, handle, a.Name, params); err != nil {
		return deviceError(op, t, err)
	}
	d.publish(eventbus.EntryModified, t, handle)
	return nil
}

// FetchEntries reads every entry of the table and serializes them into one
// buffer. The caller hands the result back with FetchDone.
func (d *Dispatcher) FetchEntries(ctx context.Context, tableID uint32) (res *entries.FetchResult, err error) {
	const op = "FetchEntries"
	ctx, span := d.start(ctx, op, tableID)
	defer func() { finish(span, err) }()

	t, err := d.table(op, tableID)
	if err != nil {
		return nil, err
	}
	devEntries, err := d.Device.FetchEntries(ctx, t.Name)
	if err != nil {
		return nil, deviceError(op, t, err)
	}

	fetched := make([]entries.FetchedEntry, 0, len(devEntries))
	for i := range devEntries {
		e := &devEntries[i]
		if e.Action.Type != device.ActionEntryData {
			return nil, status.Errorf(status.InvalidEntryType, op, t.Name, "entry %d has no direct action data", e.Handle)
		}
		a, ok := d.Schema.ActionByName(e.Action.ActionName)
		if !ok || !t.HasAction(a.ID) {
			return nil, status.Errorf(status.InvalidActionID, op, t.Name, "device returned action %q, not an action of the table", e.Action.ActionName)
		}
		fe := entries.FetchedEntry{
			Handle:   e.Handle,
			Match:    e.Match,
			ActionID: a.ID,
			Params:   e.Action.Params,
		}
		if e.Priority != nil {
			if *e.Priority < 0 {
				return nil, status.Errorf(status.SchemaViolation, op, t.Name, "entry %d has negative priority %d", e.Handle, *e.Priority)
			}
			prio := uint32(*e.Priority)
			fe.Priority = &prio
		}
		fetched = append(fetched, fe)
	}

	res, err = d.Serializer.Serialize(tableID, fetched)
	switch {
	case errors.Is(err, entries.ErrBufferTooLarge):
		return nil, status.Wrap(status.MemoryError, op, t.Name, err)
	case errors.Is(err, entries.ErrBufferOverflow):
		return nil, status.Wrap(status.BufferError, op, t.Name, err)
	case err != nil:
		return nil, status.Wrap(status.SchemaViolation, op, t.Name, err)
	}
	span.SetAttributes(attribute.Int("p4.entries", res.NumEntries), attribute.Int("p4.bytes", res.Size))
	return res, nil
}

// FetchDone releases a result returned by FetchEntries.
func (d *Dispatcher) FetchDone(res *entries.FetchResult) error {
	if res == nil {
		return errNilEntry
	}
	return res.Release()
}
