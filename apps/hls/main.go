// Command hls serves the converted video library on its own port, next to the API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/video"
	logsvc "github.com/trezcool/darasa/services/logger"
)

func main() {
	conf := core.NewConfig()

	addr := flag.String("addr", conf.Server.HLSAddress, "address to listen on")
	dir := flag.String("dir", conf.Video.HLSDir, "directory of the converted videos")
	flag.Parse()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		panic(err)
	}
	logger := logsvc.NewZapLogger(zl.Named("hls"))
	defer logger.Sync()

	if err = run(conf, logger, *addr, *dir); err != nil {
		logger.Error("hls server stopped", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(conf *core.Config, logger core.Logger, addr, dir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating video directory")
	}

	server := echoapi.NewHLSServer(&echoapi.HLSOptions{
		Address:    addr,
		Conf:       conf,
		Logger:     logger,
		Translator: core.NewTranslator(),
		Videos:     video.NewLibrary(dir, logger),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("hls server listening", map[string]interface{}{"address": addr, "dir": dir})
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		return errors.Wrap(server.Stop(sctx), "stopping hls server")
	})
	return g.Wait()
}
