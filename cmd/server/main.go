// Command server boots the example application: one main runner hosting
// the I/O reactor, TCP acceptor, socket router, and actor service, plus a
// configurable number of worker runners echoing bytes back to clients
// handed off to them. Grounded on cmd/gateway/main.go's flag parsing +
// signal.Notify + graceful-shutdown shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/fluxorio/kestrel/pkg/actor"
	"github.com/fluxorio/kestrel/pkg/config"
	"github.com/fluxorio/kestrel/pkg/echoservice"
	"github.com/fluxorio/kestrel/pkg/engine"
	"github.com/fluxorio/kestrel/pkg/engineerr"
	"github.com/fluxorio/kestrel/pkg/ioloop"
	"github.com/fluxorio/kestrel/pkg/kernel"
	"github.com/fluxorio/kestrel/pkg/mailbox"
	"github.com/fluxorio/kestrel/pkg/signalservice"
	"github.com/fluxorio/kestrel/pkg/socketrouter"
	"github.com/fluxorio/kestrel/pkg/tcpserver"
	"github.com/fluxorio/kestrel/pkg/types"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	port := fs.Int("port", 0, "TCP listen port (required unless set in --config)")
	runners := fs.Int("runners", 1, "number of worker runners echoing handed-off sockets")
	target := fs.String("target", "", "worker service kind name; stored in the config but not read: worker runners always run echo-service")
	configPath := fs.String("config", "", "optional YAML config file overlaying these flags' defaults")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: server --port <u16> [--runners N] [--target echo-service] [--config path]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "server: loading config:", err)
		return 1
	}
	if *port != 0 {
		cfg.Port = *port
	}
	runnersSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "runners" {
			runnersSet = true
		}
	})
	if runnersSet {
		cfg.Runners = *runners
	}
	if *target != "" {
		cfg.Target = *target
	}
	if cfg.Port == 0 {
		fmt.Fprintln(os.Stderr, "server: --port is required")
		fs.Usage()
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	eng := engine.New(engine.Options{Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Shutdown()

	mainRunnerName := "main"
	route := func(socketID int64) (string, ioloop.AddOptions) {
		routedTo := mainRunnerName
		if cfg.Runners > 0 {
			routedTo = workerRunnerName(int(socketID) % cfg.Runners)
		}
		return routedTo, ioloop.AddOptions{In: true, EdgeTrigger: true}
	}

	mainBuilder := kernel.NewRunnerBuilder(mainRunnerName, logger).
		WithService(ioloop.Kind, ioloop.New()).
		WithService(actor.Kind, actor.New(eng.Center, nil)).
		WithService(tcpserver.Kind, tcpserver.New(cfg.Port)).
		WithService(socketrouter.Kind, socketrouter.New(route))

	signalFactory := signalservice.New()
	var sigSvc *signalservice.SignalService
	wrappedSignalFactory := func(rc *kernel.RunnerContext) (kernel.Service, error) {
		svc, err := signalFactory(rc)
		if err != nil {
			return nil, err
		}
		sigSvc = svc.(*signalservice.SignalService)
		return svc, nil
	}
	mainBuilder = mainBuilder.WithService(signalservice.Kind, wrappedSignalFactory)
	mainBuilder = mainBuilder.WithStopSignal(func() bool { return sigSvc != nil && sigSvc.IsInterrupted() })

	mainRunner, err := mainBuilder.BuildRunner()
	if err != nil {
		logger.Error("failed to build main runner", "error", err)
		return 1
	}

	workerRunners := make([]*kernel.ThreadRunner, 0, cfg.Runners)
	for i := 0; i < cfg.Runners; i++ {
		name := workerRunnerName(i)
		workerActorFactory := actor.New(eng.Center, nil)
		var workerActor *actor.ActorService
		wrappedActorFactory := func(rc *kernel.RunnerContext) (kernel.Service, error) {
			svc, err := workerActorFactory(rc)
			if err != nil {
				return nil, err
			}
			workerActor = svc.(*actor.ActorService)
			return svc, nil
		}

		wb := kernel.NewRunnerBuilder(name, logger).
			WithService(ioloop.Kind, ioloop.New()).
			WithService(actor.Kind, wrappedActorFactory).
			WithService(echoservice.Kind, echoservice.New()).
			WithStopSignal(func() bool { return workerActor != nil && workerActor.IsShutdownRequested() })

		wr, err := wb.BuildThreadRunner()
		if err != nil {
			logger.Error("failed to build worker runner", "runner", name, "error", err)
			return 1
		}
		if err := wr.Start(); err != nil {
			logger.Error("failed to start worker runner", "runner", name, "error", err)
			return 1
		}
		workerRunners = append(workerRunners, wr)
	}

	logger.Info("server starting", "port", cfg.Port, "runners", cfg.Runners)
	runErr := mainRunner.Run()

	// Broadcast the reserved shutdown mail so every worker's ActorService
	// treats it as a local interrupt (spec.md §6), then join each worker's
	// goroutine. Stop is safe to call whether or not the worker has
	// already left its loop in response to the mail.
	if controlBox, cerr := eng.Center.Create("shutdown-broadcaster"); cerr == nil {
		if err := broadcastShutdown(controlBox); err != nil {
			logger.Warn("broadcasting shutdown mail failed", "error", err)
		}
		_ = eng.Center.Delete("shutdown-broadcaster")
	} else {
		logger.Warn("failed to create shutdown-broadcaster mailbox", "error", cerr)
	}

	for i, wr := range workerRunners {
		if err := wr.Stop(); err != nil {
			logger.Warn("worker runner stop failed", "runner", workerRunnerName(i), "error", err)
		}
	}

	if engineerr.Is(runErr, engineerr.Interrupted) {
		logger.Info("server shut down on interrupt")
		return 1
	}
	if runErr != nil {
		logger.Error("server exited with error", "error", runErr)
		return 1
	}
	return 0
}

func workerRunnerName(i int) string {
	return "worker-" + strconv.Itoa(i)
}

// broadcastShutdown asks every registered runner's ActorService to stop,
// via the reserved shutdown mail event (spec.md §6).
func broadcastShutdown(box *mailbox.MailBox) error {
	return box.Send(mailbox.Mail{From: box.Name(), To: mailbox.Broadcast, Event: actor.EventShutdown, Body: types.NewDict()})
}
