package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motongxue/stopAndWaitTransfer/protocol"
	"github.com/motongxue/stopAndWaitTransfer/server"
	"github.com/motongxue/stopAndWaitTransfer/store"
	"github.com/motongxue/stopAndWaitTransfer/utils"
)

// receiveCmd represents the receive command
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "receive files from remote senders",
	Long:  `receive listens on a UDP port and saves every received file under the output directory.`,
	Args:  cobra.NoArgs,
	RunE:  ExecuteReceive,
}

func init() {
	RootCmd.AddCommand(receiveCmd)
	flags := receiveCmd.Flags()
	flags.IntP("port", "p", 9000, "the UDP port to listen on")
	flags.StringP("out", "o", "test_out", "the directory to save files in")
	flags.String("http", "", "address of the status API, e.g. :8080")

	v.BindPFlag(utils.KeyServerPort, flags.Lookup("port"))
	v.BindPFlag(utils.KeyServerOutputDir, flags.Lookup("out"))
	v.BindPFlag(utils.KeyServerHTTPAddr, flags.Lookup("http"))
}

func ExecuteReceive(cmd *cobra.Command, args []string) error {
	codec, err := protocol.NewCodec(conf.PacketSize)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	conn, err := listen(fmt.Sprintf(":%d", conf.Server.Port))
	if err != nil {
		return err
	}
	defer conn.Close()

	if addr := conf.Server.HTTPAddr; addr != "" {
		srv := startStatusServer(addr, st)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	return server.Serve(ctx, withFaults(conn), server.Config{
		Codec:       codec,
		OutputDir:   conf.Server.OutputDir,
		IdleTimeout: conf.Server.IdleTimeout,
		Store:       st,
		Logger:      logger,
	})
}

// openStore 配置了 Redis 时使用 Redis，否则使用内存
func openStore(ctx context.Context) (store.Store, func(), error) {
	r := conf.Redis
	if r.Addr == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	client, err := store.NewRedisClient(ctx, r.Addr, r.Password, r.DB)
	if err != nil {
		return nil, nil, err
	}
	logger.WithField("addr", r.Addr).Info("connected to redis")
	return store.NewRedisStore(client, r.TTL), func() { client.Close() }, nil
}

func startStatusServer(addr string, st store.Store) *http.Server {
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{Addr: addr, Handler: server.NewStatusRouter(st)}
	go func() {
		logger.WithField("addr", addr).Info("status API started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("status API stopped")
		}
	}()
	return srv
}
