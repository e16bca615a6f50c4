package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motongxue/stopAndWaitTransfer/client"
	"github.com/motongxue/stopAndWaitTransfer/protocol"
	"github.com/motongxue/stopAndWaitTransfer/transport"
	"github.com/motongxue/stopAndWaitTransfer/utils"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <host> <port> <sourcePath> <destPath>",
	Short: "send a local file to a remote receiver",
	Long:  `send reads sourcePath and delivers it to the receiver at host:port, which saves it as destPath.`,
	Args:  cobra.ExactArgs(4),
	RunE:  ExecuteSend,
}

func init() {
	RootCmd.AddCommand(sendCmd)
}

func ExecuteSend(cmd *cobra.Command, args []string) error {
	host, source, dest := args[0], args[2], args[3]
	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[1])
	}
	data, err := utils.ReadAllBytes(source)
	if err != nil {
		return err
	}
	codec, err := protocol.NewCodec(conf.PacketSize)
	if err != nil {
		return err
	}
	peer, err := transport.ResolvePeer(host, port)
	if err != nil {
		return err
	}
	conn, err := listen(":0")
	if err != nil {
		return err
	}
	defer conn.Close()

	sum, err := utils.CalMD5(bytes.NewReader(data))
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"peer": peer,
		"file": source,
		"size": utils.FormatBytesCount(int64(len(data))),
		"md5":  sum,
	}).Info("sending file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sender := client.NewSender(withFaults(conn), peer,
		client.WithCodec(codec),
		client.WithLogger(logger),
		client.WithRetryPolicy(client.RetryPolicy{
			MaxAttempts:    conf.Client.MaxAttempts,
			InitialTimeout: conf.Client.InitialTimeout,
			MaxTimeout:     conf.Client.MaxTimeout,
			Backoff:        conf.Client.Backoff,
		}),
	)
	result, err := sender.Send(ctx, dest, data)
	if err != nil {
		logger.WithError(err).Error("transfer aborted")
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s:%s in %v (%d units, %d retransmissions)\n",
		source, host, dest, result.Elapsed, result.Units, result.Retransmissions)
	return nil
}
