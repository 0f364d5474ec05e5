// Package cmd implements the commands of the interactive shell and the subcommands of the binary.
package cmd

import (
	"context"
	"net"
	"net/netip"

	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/sock"
	"bjoernblessin.de/rudpfile/util/logger"
)

var rootCtx = context.Background()
var socket sock.Socket
var config common.Config
var prompt func(label string) (string, bool)

// SetGlobalVars sets the context, socket and config used by all commands.
// p asks the user for a missing argument; nil disables prompting.
func SetGlobalVars(ctx context.Context, s sock.Socket, cfg common.Config, p func(label string) (string, bool)) {
	rootCtx = ctx
	socket = s
	config = cfg
	prompt = p
}

// OpenSocket opens a UDP socket on listen. With fault injection configured, the socket drops,
// corrupts and duplicates outgoing datagrams.
func OpenSocket(listen netip.AddrPort, cfg common.Config) (sock.Socket, error) {
	var s sock.Socket = sock.NewUDPSocket(sock.WithTOS(cfg.TOS))

	localAddr, err := s.Open(listen)
	if err != nil {
		return nil, err
	}
	logger.Infof("Listening on %s", localAddr)

	if cfg.HasFaultInjection() {
		logger.Warnf("Fault injection enabled: drop %.2f, corrupt %.2f, duplicate %.2f", cfg.DropRate, cfg.CorruptRate, cfg.DuplicateRate)
		s = sock.NewLossySocket(s, sock.LossConfig{
			DropRate:      cfg.DropRate,
			CorruptRate:   cfg.CorruptRate,
			DuplicateRate: cfg.DuplicateRate,
			Seed:          cfg.LossSeed,
		})
	}

	return s, nil
}

// ResolvePeer parses host:port. Host names are resolved to an IPv4 address.
func ResolvePeer(s string) (netip.AddrPort, error) {
	addrPort, err := netip.ParseAddrPort(s)
	if err == nil {
		return addrPort, nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp4", s)
	if err != nil {
		return netip.AddrPort{}, err
	}

	addrPort = udpAddr.AddrPort()
	return netip.AddrPortFrom(addrPort.Addr().Unmap(), addrPort.Port()), nil
}
