// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

// Package p4driverAPI drives table operations over a P4Runtime session.
package p4driverAPI

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	p4_v1 "github.com/p4lang/p4runtime/go/p4/v1"

	"github.com/antoninbas/p4runtime-go-client/pkg/client"
	"github.com/antoninbas/p4runtime-go-client/pkg/signals"

	"github.com/opiproject/opi-pi-tables/pkg/device"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info"
)

const (
	defaultDeviceID = 1

	// P4Runtime reserves priority 0 for entries without one, so caller
	// priorities are shifted up by one on the wire.
	priorityOffset = 1
	maxPriority    = math.MaxInt32 - priorityOffset
)

// Options configures the P4Runtime session.
type Options struct {
	DeviceID           uint64
	ElectionID         uint64
	BinPath            string
	P4InfoPath         string
	ConnectTimeout     time.Duration
	ArbitrationTimeout time.Duration
}

// NewP4RuntimeClient opens a P4Runtime session on conn, waits to become the
// primary client and installs the forwarding pipeline when BinPath is set.
// Without BinPath the pipeline already on the device is used.
func NewP4RuntimeClient(ctx context.Context, conn *grpc.ClientConn, opts Options) (*client.Client, p4_v1.P4RuntimeClient, error) {
	if opts.DeviceID == 0 {
		opts.DeviceID = defaultDeviceID
	}
	if opts.ElectionID == 0 {
		opts.ElectionID = 1
	}
	if opts.ArbitrationTimeout == 0 {
		opts.ArbitrationTimeout = 5 * time.Second
	}

	c := p4_v1.NewP4RuntimeClient(conn)
	resp, err := backoff.Retry(ctx, func() (*p4_v1.CapabilitiesResponse, error) {
		return c.Capabilities(ctx, &p4_v1.CapabilitiesRequest{})
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(opts.ConnectTimeout))
	if err != nil {
		return nil, nil, fmt.Errorf("capabilities RPC: %w", err)
	}
	log.Infof("P4Runtime server version is %s", resp.P4RuntimeApiVersion)

	stopCh := signals.RegisterSignalHandlers()

	electionID := &p4_v1.Uint128{High: 0, Low: opts.ElectionID}

	P4RtC := client.NewClient(c, opts.DeviceID, electionID)
	arbitrationCh := make(chan bool)
	go P4RtC.Run(stopCh, arbitrationCh, nil)

	waitCh := make(chan struct{}, 1)

	go func() {
		sent := false
		for isPrimary := range arbitrationCh {
			if isPrimary {
				log.Infof("We are the primary client!")
				if !sent {
					waitCh <- struct{}{}
					sent = true
				}
			} else {
				log.Infof("We are not the primary client!")
			}
		}
	}()

	ctx2, cancel := context.WithTimeout(ctx, opts.ArbitrationTimeout)
	defer cancel()
	select {
	case <-ctx2.Done():
		return nil, nil, fmt.Errorf("could not become the primary client within %v", opts.ArbitrationTimeout)
	case <-waitCh:
	}

	if opts.BinPath == "" {
		log.Info("Reading forwarding pipe from device")
		if _, err := P4RtC.GetFwdPipe(ctx, client.GetFwdPipeP4InfoAndCookie); err != nil {
			return nil, nil, fmt.Errorf("reading forwarding pipe: %w", err)
		}
		return P4RtC, c, nil
	}
	log.Info("Setting forwarding pipe")
	if _, err := P4RtC.SetFwdPipe(ctx, opts.BinPath, opts.P4InfoPath, 0); err != nil {
		return nil, nil, fmt.Errorf("setting forwarding pipe: %w", err)
	}
	return P4RtC, c, nil
}

// Driver implements device.Device on a P4Runtime session. P4Runtime has no
// entry handles, so handles are issued by a HandleStore.
type Driver struct {
	schema   p4info.Lookup
	client   *client.Client
	rt       p4_v1.P4RuntimeClient
	deviceID uint64
	handles  *HandleStore
}

var _ device.Device = (*Driver)(nil)

func NewDriver(schema p4info.Lookup, c *client.Client, rt p4_v1.P4RuntimeClient, deviceID uint64, handles *HandleStore) *Driver {
	if deviceID == 0 {
		deviceID = defaultDeviceID
	}
	return &Driver{schema: schema, client: c, rt: rt, deviceID: deviceID, handles: handles}
}

func (d *Driver) table(name string) (*p4info.Table, error) {
	t, ok := d.schema.TableByName(name)
	if !ok {
		return nil, &device.OperationError{Code: device.InvalidTableName, Description: name}
	}
	return t, nil
}

func wirePriority(opts device.EntryOptions) (int32, error) {
	if opts.Priority == nil {
		return 0, nil
	}
	if p := *opts.Priority; p < 0 || p > maxPriority {
		return 0, &device.OperationError{
			Code:        device.BadMatchKey,
			Description: fmt.Sprintf("priority %d outside [0, %d]", p, maxPriority),
		}
	}
	return *opts.Priority + priorityOffset, nil
}

func entryOptions(prio int32) *client.TableEntryOptions {
	if prio == 0 {
		return nil
	}
	return &client.TableEntryOptions{Priority: prio}
}

// canonical zeroes the value of don't-care fields, which the device does not
// keep, so a key registered on add matches the key read back on fetch.
func canonical(key matchkey.Key) matchkey.Key {
	out := make(matchkey.Key, len(key))
	for i, f := range key {
		switch v := f.(type) {
		case *matchkey.LPM:
			if v.PrefixLen == 0 {
				f = &matchkey.LPM{Key: make([]byte, len(v.Key))}
			}
		case *matchkey.Ternary:
			if allZero(v.Mask) {
				f = &matchkey.Ternary{Key: make([]byte, len(v.Key)), Mask: v.Mask}
			}
		}
		out[i] = f
	}
	return out
}

func (d *Driver) insert(ctx context.Context, t *p4info.Table, match matchkey.Key, action *p4_v1.TableAction, opts device.EntryOptions) (uint64, error) {
	prio, err := wirePriority(opts)
	if err != nil {
		return 0, err
	}
	mfs, err := Buildmfs(t, match)
	if err != nil {
		return 0, &device.OperationError{Code: device.BadMatchKey, Description: err.Error()}
	}
	entry := d.client.NewTableEntry(t.Name, mfs, action, entryOptions(prio))
	log.Debugf("p4driverAPI: insert into %s: %v", t.Name, entry)
	if err := d.client.InsertTableEntry(ctx, entry); err != nil {
		return 0, operationError(err)
	}
	h, err := d.handles.Register(t.Name, matchkey.Encode(canonical(match)), prio)
	if err != nil {
		return 0, operationError(err)
	}
	return h, nil
}

func (d *Driver) AddEntry(ctx context.Context, table string, match matchkey.Key, action string, params [][]byte, opts device.EntryOptions) (uint64, error) {
	t, err := d.table(table)
	if err != nil {
		return 0, err
	}
	return d.insert(ctx, t, match, d.client.NewTableActionDirect(action, params), opts)
}

func (d *Driver) AddIndirectEntry(ctx context.Context, table string, match matchkey.Key, indirectHandle uint64, opts device.EntryOptions) (uint64, error) {
	t, err := d.table(table)
	if err != nil {
		return 0, err
	}
	if t.ImplementationID == 0 {
		return 0, &device.OperationError{Code: device.WrongTableType, Description: table + " has no action profile"}
	}
	return d.insert(ctx, t, match, indirectAction(indirectHandle), opts)
}

// entryFor rebuilds the P4Runtime entry behind a handle.
func (d *Driver) entryFor(t *p4info.Table, handle uint64, action *p4_v1.TableAction) (*p4_v1.TableEntry, error) {
	raw, prio, err := d.handles.Resolve(t.Name, handle)
	if err != nil {
		return nil, operationError(err)
	}
	key, _, err := matchkey.Decode(raw, t.Descriptors())
	if err != nil {
		return nil, &device.OperationError{Code: device.InvalidHandle, Description: err.Error()}
	}
	mfs, err := Buildmfs(t, key)
	if err != nil {
		return nil, &device.OperationError{Code: device.BadMatchKey, Description: err.Error()}
	}
	return d.client.NewTableEntry(t.Name, mfs, action, entryOptions(prio)), nil
}

func (d *Driver) DeleteEntry(ctx context.Context, table string, handle uint64) error {
	t, err := d.table(table)
	if err != nil {
		return err
	}
	entry, err := d.entryFor(t, handle, nil)
	if err != nil {
		return err
	}
	log.Debugf("p4driverAPI: delete from %s: %v", table, entry)
	if err := d.client.DeleteTableEntry(ctx, entry); err != nil {
		return operationError(err)
	}
	return operationError(d.handles.Release(table, handle))
}

func (d *Driver) ModifyEntry(ctx context.Context, table string, handle uint64, action string, params [][]byte) error {
	t, err := d.table(table)
	if err != nil {
		return err
	}
	entry, err := d.entryFor(t, handle, d.client.NewTableActionDirect(action, params))
	if err != nil {
		return err
	}
	return operationError(d.client.ModifyTableEntry(ctx, entry))
}

func (d *Driver) SetDefaultAction(ctx context.Context, table string, action string, params [][]byte) error {
	if _, err := d.table(table); err != nil {
		return err
	}
	entry := d.client.NewTableEntry(table, nil, d.client.NewTableActionDirect(action, params), nil)
	entry.IsDefaultAction = true
	return operationError(d.client.ModifyTableEntry(ctx, entry))
}

func (d *Driver) GetDefaultEntry(ctx context.Context, table string) (*device.ActionEntry, error) {
	t, err := d.table(table)
	if err != nil {
		return nil, err
	}
	stream, err := d.rt.Read(ctx, &p4_v1.ReadRequest{
		DeviceId: d.deviceID,
		Entities: []*p4_v1.Entity{{
			Entity: &p4_v1.Entity_TableEntry{TableEntry: &p4_v1.TableEntry{TableId: t.ID, IsDefaultAction: true}},
		}},
	})
	if err != nil {
		return nil, operationError(err)
	}
	var found *p4_v1.TableEntry
	for {
		rep, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, operationError(err)
		}
		for _, e := range rep.GetEntities() {
			if te := e.GetTableEntry(); te != nil {
				found = te
			}
		}
	}
	if found == nil || found.GetAction() == nil {
		return nil, nil
	}
	ae, err := actionFromProto(d.schema, found.GetAction())
	if err != nil {
		return nil, err
	}
	return &ae, nil
}

func (d *Driver) FetchEntries(ctx context.Context, table string) ([]device.Entry, error) {
	t, err := d.table(table)
	if err != nil {
		return nil, err
	}
	read, err := d.client.ReadTableEntryWildcard(ctx, table)
	if err != nil {
		return nil, operationError(err)
	}

	out := make([]device.Entry, 0, len(read))
	for _, te := range read {
		key, err := matchFromProto(t, te.GetMatch())
		if err != nil {
			return nil, &device.OperationError{Code: device.BadMatchKey, Description: err.Error()}
		}
		action, err := actionFromProto(d.schema, te.GetAction())
		if err != nil {
			return nil, err
		}
		h, err := d.handles.Register(table, matchkey.Encode(key), te.GetPriority())
		if err != nil {
			return nil, operationError(err)
		}
		e := device.Entry{Handle: h, Match: key, Action: action}
		if te.GetPriority() > 0 {
			prio := te.GetPriority() - priorityOffset
			e.Priority = &prio
		}
		out = append(out, e)
	}
	log.Debugf("p4driverAPI: read %d entries from %s", len(out), table)
	return out, nil
}
