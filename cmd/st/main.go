package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"shiptrack/internal/app"
	"shiptrack/internal/config"
	"shiptrack/internal/engine"
	"shiptrack/internal/export"
	"shiptrack/internal/logging"
	"shiptrack/internal/relay"
	"shiptrack/internal/seed"
	"shiptrack/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "st",
	Short: "Shiptrack CLI",
	Long: `Shiptrack tracks purchase-order shipments for a logistics team.
- Workspace: a directory holding shiptrack.yml and the .shiptrack database with the demo data.
- Shipments: filter by search term, transport type, PO type and ETD range; sort by clear date or status.
- Co-load: shipments that share a container are grouped by their related POs.
- Notifications: an inbox with read and delete actions.
- Events: every data change is logged and can be relayed to Kafka with 'st relay'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SHIPTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("no-latency", false, "disable simulated data source latency")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("no-latency", rootCmd.PersistentFlags().Lookup("no-latency"))
}

func registerCommands() {
	rootCmd.AddCommand(shipmentsCmd())
	rootCmd.AddCommand(intakeCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(dataCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(relayCmd())
}

// criteriaFlags collects filter flags; only flags the user set are applied.
type criteriaFlags struct {
	search, transport, poType, from, to, sort string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "supplier name or PO number substring")
	cmd.Flags().StringVar(&f.transport, "type", "all", "transport type (Air, Oversea, Truck or all)")
	cmd.Flags().StringVar(&f.poType, "po-type", "all", "PO type (Single, Multiple, Co-load or all)")
	cmd.Flags().StringVar(&f.from, "from", "", "earliest ETD (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "latest ETD (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.sort, "sort", "none", "none, clearDate-asc, clearDate-desc, status-asc or status-desc")
}

func (f *criteriaFlags) patch(cmd *cobra.Command) engine.Patch {
	var p engine.Patch
	set := func(name string, v *string) *string {
		if cmd.Flags().Changed(name) {
			return v
		}
		return nil
	}
	p.Search = set("search", &f.search)
	p.Type = set("type", &f.transport)
	p.POType = set("po-type", &f.poType)
	p.From = set("from", &f.from)
	p.To = set("to", &f.to)
	p.Sort = set("sort", &f.sort)
	return p
}

func shipmentsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "shipments", Short: "Browse shipments"}
	cmd.AddCommand(shipmentsListCmd())
	cmd.AddCommand(shipmentsShowCmd())
	cmd.AddCommand(shipmentsColoadCmd())
	cmd.AddCommand(shipmentsExportCmd())
	return cmd
}

func shipmentsListCmd() *cobra.Command {
	var f criteriaFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Filter and sort shipments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd, f.patch(cmd), func(v engine.View) error {
				if viper.GetBool("json") {
					return printJSON(v.Shipments)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"PO", "Supplier", "Type", "PO Type", "ETD", "Clear", "Status", "Progress"})
				for _, s := range v.Shipments {
					tw.AppendRow(table.Row{s.PONumber, s.SupplierName, s.Type, s.POType, s.ETD, s.DateClear, s.Status, fmt.Sprintf("%d%%", s.Progress)})
				}
				tw.AppendFooter(table.Row{fmt.Sprintf("%d of %d", v.Count, v.Total)})
				tw.Render()
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func shipmentsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <po-number>",
		Short: "Show one shipment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *app.Session) error {
				if err := s.Dashboard.Refresh(ctx); err != nil {
					return err
				}
				sh, ok := s.Dashboard.Shipment(args[0])
				if !ok {
					return fmt.Errorf("shipment %s not found", args[0])
				}
				if viper.GetBool("json") {
					return printJSON(sh)
				}
				tw := newTable()
				tw.AppendRows([]table.Row{
					{"PO", sh.PONumber},
					{"Supplier", sh.SupplierName},
					{"Type", sh.Type},
					{"PO Type", sh.POType},
					{"Port", sh.Port},
					{"ETD / ETA", sh.ETD + " / " + sh.ETA},
					{"Clear date", sh.DateClear},
					{"Status", fmt.Sprintf("%s (%d%%)", sh.Status, sh.Progress)},
					{"Container", sh.QualityContainer},
					{"Total value", sh.TotalValue},
					{"Weight", sh.Weight},
					{"Related POs", strings.Join(sh.RelatedPOs, ", ")},
					{"Documents", strings.Join(sh.Documents, ", ")},
				})
				tw.Render()
				return nil
			})
		},
	}
}

func shipmentsColoadCmd() *cobra.Command {
	var f criteriaFlags
	cmd := &cobra.Command{
		Use:   "coload",
		Short: "Group the filtered co-load shipments by container",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd, f.patch(cmd), func(v engine.View) error {
				if viper.GetBool("json") {
					return printJSON(map[string]any{"groups": v.Groups, "standalone": v.Standalone})
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Container", "POs", "Value", "Weight", "Ports", "Critical", "Unresolved"})
				for _, g := range v.Groups {
					pos := make([]string, 0, len(g.Shipments))
					for _, s := range g.Shipments {
						pos = append(pos, s.PONumber)
					}
					tw.AppendRow(table.Row{
						g.Container,
						strings.Join(pos, ", "),
						fmt.Sprintf("%.2f", g.TotalValue),
						fmt.Sprintf("%g %s", g.TotalWeight, g.WeightUnit),
						strings.Join(g.Ports, ", "),
						g.MostCriticalStatus,
						strings.Join(g.UnresolvedPOs, ", "),
					})
				}
				for _, s := range v.Standalone {
					tw.AppendRow(table.Row{s.QualityContainer, s.PONumber + " (standalone)", fmt.Sprintf("%.2f", s.TotalValue), s.Weight, s.Port, s.Status, ""})
				}
				tw.Render()
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func shipmentsExportCmd() *cobra.Command {
	var f criteriaFlags
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered shipments and co-load groups to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out required")
			}
			return withDashboard(cmd, f.patch(cmd), func(v engine.View) error {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := export.WriteXLSX(file, v.Shipments, v.Groups); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"file": out, "shipments": v.Count, "groups": len(v.Groups)})
				}
				fmt.Printf("Wrote %d shipments and %d co-load groups to %s\n", v.Count, len(v.Groups), out)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "shipments.xlsx", "output file")
	return cmd
}

func intakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intake",
		Short: "Show purchase order intake KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd, engine.Patch{}, func(v engine.View) error {
				k := v.Intake
				if viper.GetBool("json") {
					return printJSON(k)
				}
				tw := newTable()
				tw.AppendRows([]table.Row{
					{"Date", k.Date},
					{"PO today", k.POToday},
					{"PO next 7 days", k.PONext7Days},
					{"PST completed", fmt.Sprintf("%d / %d", k.PSTCompleted, k.PSTTotal)},
					{"PST remaining", k.PSTRemaining},
					{"PSW this week", fmt.Sprintf("%d (%s..%s)", k.PSWThisWeek, k.WeekStart, k.WeekEnd)},
				})
				tw.Render()
				return nil
			})
		},
	}
}

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notifications", Aliases: []string{"inbox"}, Short: "Manage the notification inbox"}
	cmd.AddCommand(notificationsListCmd())
	cmd.AddCommand(notificationsMutateCmd("read <id>", "Mark a notification as read", func(ctx context.Context, in *engine.Inbox, id string) error {
		return in.MarkRead(ctx, id)
	}))
	cmd.AddCommand(notificationsMutateCmd("read-all", "Mark every notification as read", func(ctx context.Context, in *engine.Inbox, _ string) error {
		return in.MarkAllRead(ctx)
	}))
	cmd.AddCommand(notificationsMutateCmd("delete <id>", "Delete a notification", func(ctx context.Context, in *engine.Inbox, id string) error {
		return in.Delete(ctx, id)
	}))
	return cmd
}

func notificationsListCmd() *cobra.Command {
	var f engine.InboxFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *app.Session) error {
				if err := s.Inbox.Refresh(ctx); err != nil {
					return err
				}
				return printInbox(s.Inbox, f)
			})
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", "all", "notification type")
	cmd.Flags().BoolVar(&f.UnreadOnly, "unread", false, "only unread notifications")
	return cmd
}

func notificationsMutateCmd(use, short string, fn func(context.Context, *engine.Inbox, string) error) *cobra.Command {
	args := cobra.NoArgs
	if strings.Contains(use, "<id>") {
		args = cobra.ExactArgs(1)
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *app.Session) error {
				if err := s.Inbox.Refresh(ctx); err != nil {
					return err
				}
				id := ""
				if len(args) > 0 {
					id = args[0]
				}
				if err := fn(ctx, s.Inbox, id); err != nil {
					return err
				}
				return printInbox(s.Inbox, engine.InboxFilter{})
			})
		},
	}
}

func printInbox(in *engine.Inbox, f engine.InboxFilter) error {
	items := in.Notifications(f)
	if viper.GetBool("json") {
		return printJSON(map[string]any{"unread_count": in.UnreadCount(), "counts": in.Counts(), "notifications": items})
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "", "Type", "Priority", "PO", "Title", "When"})
	for _, n := range items {
		mark := "*"
		if n.IsRead {
			mark = ""
		}
		tw.AppendRow(table.Row{n.ID, mark, n.Type, n.Priority, n.PONumber, n.Title, n.Timestamp})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d unread", in.UnreadCount())})
	tw.Render()
	return nil
}

func dataCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "data", Short: "Manage the workspace dataset"}
	cmd.AddCommand(dataImportCmd())
	cmd.AddCommand(dataResetCmd())
	return cmd
}

func dataImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace shipments and notifications with a YAML dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			d, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			return withSession(cmd, func(ctx context.Context, s *app.Session) error {
				if err := s.Import(ctx, d); err != nil {
					return err
				}
				return printResult("imported", len(d.Shipments), len(d.Notifications))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "dataset YAML file")
	return cmd
}

func dataResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the demo dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *app.Session) error {
				if err := s.Reset(ctx); err != nil {
					return err
				}
				return printResult("reset", s.Dashboard.View().Total, len(s.Inbox.Notifications(engine.InboxFilter{})))
			})
		},
	}
}

func printResult(action string, shipments, notifications int) error {
	if viper.GetBool("json") {
		return printJSON(map[string]any{"action": action, "shipments": shipments, "notifications": notifications})
	}
	fmt.Printf("Dataset %s: %d shipments, %d notifications\n", action, shipments, notifications)
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage shiptrack.yml"}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default shiptrack.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *app.Session) error {
				if cmd.Flags().Changed("addr") {
					s.Config.Server.Addr = addr
				}
				if cmd.Flags().Changed("base-path") {
					s.Config.Server.BasePath = basePath
				}
				if err := s.Refresh(ctx); err != nil {
					return err
				}
				handler, err := server.New(server.Config{Session: s, BasePath: s.Config.Server.BasePath, Log: s.Log.Named("http")})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: s.Config.Server.Addr, Handler: handler}
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return s.Run(ctx) })
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				g.Go(func() error {
					s.Log.Info("serving shiptrack API",
						zap.String("url", "http://"+s.Config.Server.Addr+s.Config.Server.BasePath),
						zap.String("docs", "/docs"))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func relayCmd() *cobra.Command {
	var brokers []string
	var topic string
	var replay bool
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Publish workspace events to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *app.Session) error {
				if cmd.Flags().Changed("brokers") {
					s.Config.Relay.Brokers = brokers
				}
				if cmd.Flags().Changed("topic") {
					s.Config.Relay.Topic = topic
				}
				if len(s.Config.Relay.Brokers) == 0 {
					return fmt.Errorf("no kafka brokers configured (set relay.brokers or --brokers)")
				}
				w := relay.NewKafkaWriter(s.Config.Relay.Brokers, s.Config.Relay.Topic)
				defer w.Close()
				r := &relay.Relay{
					Repo:     s.Repo,
					Writer:   w,
					Log:      s.Log.Named("relay"),
					Interval: s.Config.Relay.Interval,
					Replay:   replay,
				}
				s.Log.Info("relaying events",
					zap.Strings("brokers", s.Config.Relay.Brokers),
					zap.String("topic", s.Config.Relay.Topic))
				return r.Run(ctx)
			})
		},
	}
	cmd.Flags().StringSliceVar(&brokers, "brokers", nil, "kafka broker addresses")
	cmd.Flags().StringVar(&topic, "topic", "", "kafka topic")
	cmd.Flags().BoolVar(&replay, "replay", false, "publish the whole event log from the start")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if viper.GetBool("no-latency") {
		cfg.Mock.Latency = false
	}
	return cfg, nil
}

func withSession(cmd *cobra.Command, fn func(context.Context, *app.Session) error) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	defer log.Sync()
	s, err := app.Open(ctx, viper.GetString("workspace"), cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// withDashboard loads shipments, applies p and hands over the resulting view.
func withDashboard(cmd *cobra.Command, p engine.Patch, fn func(engine.View) error) error {
	return withSession(cmd, func(ctx context.Context, s *app.Session) error {
		if err := s.Dashboard.Refresh(ctx); err != nil {
			return err
		}
		v, err := s.Dashboard.Update(p)
		if err != nil {
			return err
		}
		return fn(v)
	})
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
