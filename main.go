package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"

	"bjoernblessin.de/rudpfile/cmd"
	"bjoernblessin.de/rudpfile/cmd/inputreader"
	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/sock"
	"bjoernblessin.de/rudpfile/spool"
	"bjoernblessin.de/rudpfile/transfer"
	"bjoernblessin.de/rudpfile/util/logger"
)

const usage = `Usage:
  rudpfile serve [flags]                       receive files
  rudpfile send  [flags] <host:port> [file]    send one file
  rudpfile watch [flags] <host:port> <dir>     send every new file of a directory
  rudpfile       [flags]                       interactive shell, receives in the background
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	subcommand := "shell"
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "serve" || args[0] == "send" || args[0] == "watch") {
		subcommand, args = args[0], args[1:]
	}

	cfg := common.DefaultConfig()
	fs := flag.NewFlagSet(subcommand, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	cfg.RegisterFlags(fs)
	listen := fs.String("listen", "0.0.0.0:0", "Local address of the UDP socket")
	dir := fs.String("dir", common.RECEIVED_FILES_DIR, "Directory for received files")
	overwrite := fs.Bool("overwrite", false, "Replace existing files when receiving")
	existing := fs.Bool("existing", false, "watch: also send the files already in the directory")
	fs.Parse(args)

	err := cfg.Validate()
	if err != nil {
		logger.Errorf("Invalid configuration: %v", err)
	}

	listenAddr, err := netip.ParseAddrPort(*listen)
	if err != nil {
		logger.Errorf("Invalid listen address %s: %v", *listen, err)
	}

	socket, err := cmd.OpenSocket(listenAddr, cfg)
	if err != nil {
		logger.Errorf("Failed to open UDP socket: %v", err)
	}
	defer socket.Close()

	cmd.SetGlobalVars(ctx, socket, cfg, nil)
	cmd.SetCancel(cancel)

	switch subcommand {
	case "serve":
		printAvailableNetworkAddresses()
		err = cmd.Serve(ctx, *dir, *overwrite, true)
		if err != nil && ctx.Err() == nil {
			logger.Errorf("Receiver stopped: %v", err)
		}

	case "send":
		if fs.NArg() < 1 || fs.NArg() > 2 {
			fs.Usage()
			os.Exit(2)
		}
		reader := inputreader.NewInputReader(os.Stdin, func() string { return "" })
		cmd.SetGlobalVars(ctx, socket, cfg, reader.Prompt)
		cmd.HandleSend(fs.Args())

	case "watch":
		if fs.NArg() != 2 {
			fs.Usage()
			os.Exit(2)
		}
		peer := fs.Arg(0)
		opts := []spool.Option{}
		if *existing {
			opts = append(opts, spool.WithExisting())
		}
		s := spool.New(fs.Arg(1), func(ctx context.Context, path string) error {
			result, err := cmd.SendFile(ctx, peer, path, false)
			if err == nil && result.Outcome != transfer.Completed {
				logger.Warnf("%s: %s", path, result.Outcome)
			}
			return err
		}, opts...)
		err = s.Run(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Errorf("Watching %s failed: %v", fs.Arg(1), err)
		}

	default:
		runShell(ctx, socket, *dir, *overwrite, cfg)
	}
}

func runShell(ctx context.Context, socket sock.Socket, dir string, overwrite bool, cfg common.Config) {
	localAddr := socket.MustGetLocalAddress()
	fmt.Printf("Listening on %s, received files go to %s\n", localAddr, dir)
	printAvailableNetworkAddresses()

	reader := inputreader.NewInputReader(os.Stdin, localAddr.String)
	cmd.SetGlobalVars(ctx, socket, cfg, reader.Prompt)

	go func() {
		err := cmd.Serve(ctx, dir, overwrite, false)
		if err != nil && ctx.Err() == nil {
			logger.Warnf("Receiver stopped: %v", err)
		}
	}()

	reader.AddHandler("send", cmd.HandleSend)
	reader.AddHandler("status", cmd.HandleStatus)
	reader.AddHandler("loglvl", cmd.HandleLogLevel)
	reader.AddHandler("exit", cmd.HandleExit)

	go func() {
		<-ctx.Done()
		os.Exit(0)
	}()

	reader.InputLoop()
}

func printAvailableNetworkAddresses() {
	inter, err := net.Interfaces()
	if err != nil {
		logger.Warnf("Failed to get network interfaces: %v", err)
		return
	}

	fmt.Println("Available network interfaces:")

	for _, iface := range inter {
		if iface.Flags&net.FlagUp == 0 {
			continue // Skip down interfaces
		}
		addrs, err2 := iface.Addrs()
		if err2 != nil {
			logger.Warnf("Failed to get addresses for interface %s: %v", iface.Name, err2)
			continue
		}

		for _, addr := range addrs {
			ip, ok := addr.(*net.IPNet)
			if !ok {
				continue // Skip non-IP addresses
			}

			if ip.IP.To4() == nil {
				continue // Skip non-IPv4 addresses
			}

			fmt.Printf("  Interface: %s, Address: %s\n", iface.Name, ip.IP)
		}
	}
}
