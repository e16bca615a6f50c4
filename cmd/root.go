package cmd

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/motongxue/stopAndWaitTransfer/protocol"
	"github.com/motongxue/stopAndWaitTransfer/transport"
	"github.com/motongxue/stopAndWaitTransfer/utils"
)

var (
	cfgFile string
	v       = viper.New()
	conf    *utils.Config
	logger  = logrus.New()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "rdt",
	Short: "reliable file transfer over UDP",
	Long: `rdt sends a file to a remote receiver over UDP using a stop-and-wait
protocol with checksums, acknowledgments and retransmission.`,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Float64("drop-rate", 0, "probability of dropping an outgoing datagram")
	flags.Float64("corrupt-rate", 0, "probability of flipping a bit in an outgoing datagram")
	flags.String("packet-size", strconv.Itoa(protocol.DefaultPacketSize), "size of a data packet in bytes, e.g. 1000 or \"1 << 10\"")

	v.BindPFlag(utils.KeyLogLevel, flags.Lookup("log-level"))
	v.BindPFlag(utils.KeyTransportDropRate, flags.Lookup("drop-rate"))
	v.BindPFlag(utils.KeyTransportCorruptRate, flags.Lookup("corrupt-rate"))
	v.BindPFlag(utils.KeyPacketSize, flags.Lookup("packet-size"))
}

func initConfig(cmd *cobra.Command, args []string) error {
	c, err := utils.LoadConfig(v, cfgFile)
	if err != nil {
		return err
	}
	conf = c
	// 参数校验通过后不再打印用法
	cmd.SilenceUsage = true

	level, err := logrus.ParseLevel(conf.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if conf.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// withFaults 按配置在发送方向上模拟丢包和损坏
func withFaults(conn transport.Conn) transport.Conn {
	t := conf.Transport
	if t.DropRate == 0 && t.CorruptRate == 0 {
		return conn
	}
	logger.WithFields(logrus.Fields{
		"drop":    t.DropRate,
		"corrupt": t.CorruptRate,
		"seed":    t.Seed,
	}).Warn("fault injection enabled")
	return transport.Faulty(conn, transport.NewRandomFaults(t.DropRate, t.CorruptRate, t.Seed))
}

// listen 打开 UDP 套接字并按配置设置 TOS
func listen(addr string) (*transport.UDPConn, error) {
	conn, err := transport.Listen(addr)
	if err != nil {
		return nil, err
	}
	if conf.Transport.TOS != 0 {
		if err := conn.SetTOS(conf.Transport.TOS); err != nil {
			logger.WithError(err).Warn("failed to set TOS")
		}
	}
	return conn, nil
}
