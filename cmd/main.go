// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.
// Copyright (c) 2022-2023 Dell Inc, or its subsidiaries.
// Copyright (C) 2023 Nordix Foundation.

// Package main is the main package of the application
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/opiproject/opi-pi-tables/pkg/actiondata"
	"github.com/opiproject/opi-pi-tables/pkg/config"
	"github.com/opiproject/opi-pi-tables/pkg/device"
	"github.com/opiproject/opi-pi-tables/pkg/entries"
	"github.com/opiproject/opi-pi-tables/pkg/eventbus"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info"
	"github.com/opiproject/opi-pi-tables/pkg/storage"
	"github.com/opiproject/opi-pi-tables/pkg/tables"
	"github.com/opiproject/opi-pi-tables/pkg/utils"
	"github.com/opiproject/opi-pi-tables/pkg/vendor_plugins/bmv2/p4runtime/p4driverAPI"
)

const (
	configFilePath = "./"
)

var rootCmd = &cobra.Command{
	Use:   "opi-pi-tables",
	Short: "P4 table entry tool",
	Long:  "Adds, modifies, deletes and dumps P4 table entries over P4Runtime",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateConfigs()
	},
	SilenceUsage: true,
}

// session is an open connection to the device with a dispatcher on top.
type session struct {
	schema     *p4info.Schema
	dispatcher *tables.Dispatcher
	closers    []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func loadSchema() (*p4info.Schema, error) {
	return p4info.Load(config.GlobalConfig.P4InfoFile)
}

func openSession(ctx context.Context) (*session, error) {
	cfg := config.GetConfig()
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	s := &session{schema: schema}

	if cfg.Tracing.Enabled {
		tp := utils.InitTracerProvider(cfg.Tracing.ServiceName)
		s.closers = append(s.closers, func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Errorf("Tracer Provider Shutdown: %v", err)
			}
		})
	}

	dialOptions := []grpc.DialOption{grpc.WithStatsHandler(otelgrpc.NewClientHandler())}
	dialOptions = append(dialOptions, utils.ClientLoggingOptions(log.StandardLogger())...)
	if cfg.TLSFiles == "" {
		log.Debug("TLS files are not specified. Use insecure connection.")
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		tlsConfig, err := utils.ParseTLSFiles(cfg.TLSFiles)
		if err != nil {
			s.Close()
			return nil, err
		}
		option, err := utils.SetupTLSCredentials(tlsConfig)
		if err != nil {
			s.Close()
			return nil, err
		}
		dialOptions = append(dialOptions, option)
	}

	conn, err := grpc.NewClient(cfg.P4RTAddress, dialOptions...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("dialing %s: %w", cfg.P4RTAddress, err)
	}
	s.closers = append(s.closers, func() { _ = conn.Close() })

	p4c, rt, err := p4driverAPI.NewP4RuntimeClient(ctx, conn, p4driverAPI.Options{
		DeviceID:           cfg.DeviceID,
		ElectionID:         cfg.ElectionID,
		BinPath:            cfg.BinFile,
		P4InfoPath:         cfg.P4InfoFile,
		ConnectTimeout:     cfg.ConnectTimeout,
		ArbitrationTimeout: cfg.ArbitrationTimeout,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	store, err := storage.NewStore(cfg.Database, cfg.DBAddress)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() {
		if err := store.GetClient().Close(); err != nil {
			log.Errorf("closing %s store: %v", cfg.Database, err)
		}
	})

	maxBuffer, err := cfg.MaxBufferSize()
	if err != nil {
		s.Close()
		return nil, err
	}

	events := eventbus.NewEventBus()
	sub := events.Subscribe(eventbus.AllTables, 64)
	go func() {
		for ev := range sub.Ch {
			log.WithFields(log.Fields{"id": ev.ID, "table": ev.Table, "handle": ev.Handle}).Infof("table %s", ev.Kind)
		}
	}()
	s.closers = append(s.closers, func() { events.Unsubscribe(sub) })

	drv := p4driverAPI.NewDriver(schema, p4c, rt, cfg.DeviceID, p4driverAPI.NewHandleStore(store.GetClient()))
	s.dispatcher = tables.NewDispatcher(schema, drv, entries.NewSerializer(schema, maxBuffer), events)
	return s, nil
}

func resolveTable(schema p4info.Lookup, arg string) (*p4info.Table, error) {
	if t, ok := schema.TableByName(arg); ok {
		return t, nil
	}
	if id, err := strconv.ParseUint(arg, 0, 32); err == nil {
		if t, ok := schema.Table(uint32(id)); ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unknown table %q", arg)
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.ReplaceAll(s, ":", ""), "0x"))
}

func buildActionData(schema p4info.Lookup, name string, hexParams []string) (actiondata.ActionData, error) {
	a, ok := schema.ActionByName(name)
	if !ok {
		return actiondata.ActionData{}, fmt.Errorf("unknown action %q", name)
	}
	params := make([][]byte, 0, len(hexParams))
	for _, p := range hexParams {
		b, err := decodeHex(p)
		if err != nil {
			return actiondata.ActionData{}, fmt.Errorf("param %q: %w", p, err)
		}
		params = append(params, b)
	}
	data, err := actiondata.Pack(params, a.Bitwidths())
	if err != nil {
		return actiondata.ActionData{}, err
	}
	return actiondata.ActionData{ActionID: a.ID, Data: data}, nil
}

func formatField(f matchkey.Field) string {
	switch v := f.(type) {
	case *matchkey.Valid:
		return fmt.Sprintf("valid(%t)", v.Present)
	case *matchkey.Exact:
		return hex.EncodeToString(v.Key)
	case *matchkey.LPM:
		return fmt.Sprintf("%x/%d", v.Key, v.PrefixLen)
	case *matchkey.Ternary:
		return fmt.Sprintf("%x&&&%x", v.Key, v.Mask)
	case *matchkey.Range:
		return fmt.Sprintf("%x..%x", v.Start, v.End)
	}
	return "?"
}

func printEntry(w io.Writer, schema p4info.Lookup, t *p4info.Table, e *entries.FetchedEntry) {
	fields := make([]string, len(e.Match))
	for i, f := range e.Match {
		fields[i] = fmt.Sprintf("%s=%s", t.MatchFields[i].Name, formatField(f))
	}
	action := strconv.FormatUint(uint64(e.ActionID), 10)
	if a, ok := schema.Action(e.ActionID); ok {
		action = a.Name
	}
	params := make([]string, len(e.Params))
	for i, p := range e.Params {
		params[i] = hex.EncodeToString(p)
	}
	line := fmt.Sprintf("  %d: %s -> %s(%s)", e.Handle, strings.Join(fields, " "), action, strings.Join(params, ", "))
	if e.Priority != nil {
		line += fmt.Sprintf(" priority %d", *e.Priority)
	}
	fmt.Fprintln(w, line)
}

var tablesCmd = &cobra.Command{
	Use:   "tables [glob]",
	Short: "List the tables of the P4 program",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		schema, err := loadSchema()
		if err != nil {
			return err
		}
		pattern := "*"
		if len(args) == 1 {
			pattern = args[0]
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return err
		}
		for _, t := range schema.Tables() {
			if !g.Match(t.Name) {
				continue
			}
			fmt.Printf("%s (id %d, match key %d bytes)\n", t.Name, t.ID, t.MatchKeySize())
			for _, mf := range t.MatchFields {
				fmt.Printf("  %s %s/%d\n", mf.Name, mf.Type, mf.Bitwidth)
			}
		}
		return nil
	},
}

// tableFetcher is the part of the dispatcher the fetch command needs.
type tableFetcher interface {
	FetchEntries(ctx context.Context, tableID uint32) (*entries.FetchResult, error)
	FetchDone(res *entries.FetchResult) error
}

// dumpTable fetches and prints the entries of t. The fetch result is handed
// back on every path.
func dumpTable(ctx context.Context, w io.Writer, f tableFetcher, schema p4info.Lookup, t *p4info.Table) (err error) {
	res, err := f.FetchEntries(ctx, t.ID)
	if err != nil {
		return err
	}
	defer func() {
		if doneErr := f.FetchDone(res); err == nil {
			err = doneErr
		}
	}()

	fmt.Fprintf(w, "%s: %d entries, %d bytes\n", t.Name, res.NumEntries, res.Size)
	r, err := entries.NewReader(schema, t.ID, res.Bytes())
	if err != nil {
		return err
	}
	all, err := r.ReadAll()
	if err != nil {
		return err
	}
	for i := range all {
		printEntry(w, schema, t, &all[i])
	}
	return nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <glob>",
	Short: "Dump the entries of every table matching glob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := glob.Compile(args[0])
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		for _, t := range s.schema.Tables() {
			if !g.Match(t.Name) {
				continue
			}
			if err := dumpTable(cmd.Context(), os.Stdout, s.dispatcher, s.schema, t); err != nil {
				return err
			}
		}
		return nil
	},
}

var (
	matchHex    string
	actionName  string
	actionParam []string
	priority    int64
	indirect    string
)

var addCmd = &cobra.Command{
	Use:   "add <table>",
	Short: "Add a table entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := resolveTable(s.schema, args[0])
		if err != nil {
			return err
		}
		key, err := decodeHex(matchHex)
		if err != nil {
			return fmt.Errorf("match: %w", err)
		}

		var entry tables.TableEntry
		if priority >= 0 {
			prio := uint32(priority)
			entry.Priority = &prio
		}
		if indirect != "" {
			h, err := strconv.ParseUint(indirect, 0, 64)
			if err != nil {
				return fmt.Errorf("indirect: %w", err)
			}
			entry.IndirectHandle = h
		} else {
			ad, err := buildActionData(s.schema, actionName, actionParam)
			if err != nil {
				return err
			}
			entry.Action = &ad
		}

		h, err := s.dispatcher.AddEntry(cmd.Context(), t.ID, key, entry, false)
		if err != nil {
			return err
		}
		fmt.Printf("added entry %d to %s\n", h, t.Name)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <table> <handle>",
	Short: "Delete a table entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := resolveTable(s.schema, args[0])
		if err != nil {
			return err
		}
		h, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return err
		}
		return s.dispatcher.DeleteEntry(cmd.Context(), t.ID, h)
	},
}

var modifyCmd = &cobra.Command{
	Use:   "modify <table> <handle>",
	Short: "Replace the action of a table entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := resolveTable(s.schema, args[0])
		if err != nil {
			return err
		}
		h, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return err
		}
		ad, err := buildActionData(s.schema, actionName, actionParam)
		if err != nil {
			return err
		}
		return s.dispatcher.ModifyEntry(cmd.Context(), t.ID, h, ad)
	},
}

var setDefaultCmd = &cobra.Command{
	Use:   "set-default <table>",
	Short: "Set the default action of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := resolveTable(s.schema, args[0])
		if err != nil {
			return err
		}
		ad, err := buildActionData(s.schema, actionName, actionParam)
		if err != nil {
			return err
		}
		return s.dispatcher.SetDefaultAction(cmd.Context(), t.ID, ad)
	},
}

var getDefaultCmd = &cobra.Command{
	Use:   "get-default <table>",
	Short: "Show the default action of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := resolveTable(s.schema, args[0])
		if err != nil {
			return err
		}
		de, err := s.dispatcher.GetDefaultAction(cmd.Context(), t.ID)
		if err != nil {
			return err
		}
		defer func() { _ = s.dispatcher.DefaultActionDone(de) }()

		switch de.Type {
		case device.ActionEntryData:
			name := strconv.FormatUint(uint64(de.Action.ActionID), 10)
			if a, ok := s.schema.Action(de.Action.ActionID); ok {
				name = a.Name
			}
			fmt.Printf("%s: %s(%x)\n", t.Name, name, de.Action.Data)
		case device.ActionEntryIndirect:
			fmt.Printf("%s: indirect %#x\n", t.Name, de.IndirectHandle)
		default:
			fmt.Printf("%s: no default action\n", t.Name)
		}
		return nil
	},
}

func initialize() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&config.GlobalConfig.CfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().String("p4rt", "127.0.0.1:9559", "P4Runtime server address in ip_address:port format")
	rootCmd.PersistentFlags().String("p4info", "", "P4Info file, text or binary")
	rootCmd.PersistentFlags().String("bin", "", "device config file to install; the running pipeline is used when empty")
	rootCmd.PersistentFlags().String("tlsfiles", "", "TLS files in client_cert:client_key:ca_cert format.")
	rootCmd.PersistentFlags().String("database", "gomap", "handle store: gomap or redis")
	rootCmd.PersistentFlags().String("dbaddress", "127.0.0.1:6379", "db address in ip_address:port format")
	rootCmd.PersistentFlags().String("loglevel", "info", "log level")

	if err := viper.GetViper().BindPFlags(rootCmd.PersistentFlags()); err != nil {
		log.Fatalf("Error binding flags to Viper: %v", err)
	}

	for _, c := range []*cobra.Command{addCmd, modifyCmd, setDefaultCmd} {
		c.Flags().StringVar(&actionName, "action", "", "action name")
		c.Flags().StringSliceVar(&actionParam, "param", nil, "action parameter in hex, in declaration order")
	}
	addCmd.Flags().StringVar(&matchHex, "match", "", "packed match key in hex")
	addCmd.Flags().Int64Var(&priority, "priority", -1, "entry priority for ternary and range keys")
	addCmd.Flags().StringVar(&indirect, "indirect", "", "action profile member handle, or group handle with bit 63 set")

	rootCmd.AddCommand(tablesCmd, fetchCmd, addCmd, deleteCmd, modifyCmd, setDefaultCmd, getDefaultCmd)
}

func initConfig() {
	if config.GlobalConfig.CfgFile != "" {
		viper.SetConfigFile(config.GlobalConfig.CfgFile)
	} else {
		// Search config in the default location
		viper.AddConfigPath(configFilePath)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config.yaml")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal(err)
	}
}

func validateConfigs() error {
	return config.GetConfig().Validate()
}

func main() {
	initialize()
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
