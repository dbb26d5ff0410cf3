package admin

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"github.com/rymc/roomserver/internal/v1/room"
	"github.com/rymc/roomserver/internal/v1/security"
	"go.uber.org/zap"
)

// Console reads line-oriented operator commands from an input stream and
// drives the same *room.Table/*security.Store operations the HTTP surface
// does, mirroring the teacher's stdin-admin-loop pattern for environments
// where the HTTP surface is firewalled off.
type Console struct {
	table *room.Table
	sec   *security.Store
	log   *zap.Logger
	out   io.Writer
}

// NewConsole builds a Console writing responses to out.
func NewConsole(table *room.Table, sec *security.Store, out io.Writer, log *zap.Logger) *Console {
	return &Console{table: table, sec: sec, log: log, out: out}
}

// Run reads commands from in until EOF, one per line. Unknown commands and
// argument errors are reported to out rather than terminating the loop.
func (c *Console) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.dispatch(line); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

// dispatch parses one console line. Mirroring the original
// CommandRegistry.parse, a line must begin with "/" to be a command at
// all; anything else is ignored rather than reported as an error.
func (c *Console) dispatch(line string) error {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return nil
	}
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "rooms":
		for _, s := range c.table.Rooms() {
			fmt.Fprintf(c.out, "%s host=%s users=%d locked=%v\n", s.ID, formatHost(s.Host), len(s.Users), s.Locked)
		}
		return nil

	case "room":
		if len(args) < 1 {
			return fmt.Errorf("usage: room <id>")
		}
		rm, err := c.table.Room(args[0])
		if !err.IsOK() {
			return err
		}
		s := rm.Snapshot()
		fmt.Fprintf(c.out, "%s host=%s state=%v locked=%v cycle=%v\n", s.ID, formatHost(s.Host), s.State, s.Locked, s.Cycle)
		return nil

	case "disband":
		if len(args) < 1 {
			return fmt.Errorf("usage: disband <id>")
		}
		if err := c.table.DestroyRoom(args[0]); !err.IsOK() {
			return err
		}
		return nil

	case "maxusers":
		if len(args) < 2 {
			return fmt.Errorf("usage: maxusers <id> <n>")
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return convErr
		}
		if err := c.table.SetMaxUsers(args[0], n); !err.IsOK() {
			return err
		}
		return nil

	case "broadcast":
		if len(args) < 2 {
			return fmt.Errorf("usage: broadcast <id> <text...>")
		}
		text := strings.Join(args[1:], " ")
		packet := wire.ClientBoundMessage{Body: wire.ChatMessage{SenderID: 0, SenderName: "admin", Text: text}}
		if err := c.table.Broadcast(args[0], packet, nil); !err.IsOK() {
			return err
		}
		return nil

	case "kick":
		if len(args) < 2 {
			return fmt.Errorf("usage: kick <room> <userId>")
		}
		userID, convErr := strconv.ParseInt(args[1], 10, 32)
		if convErr != nil {
			return convErr
		}
		result, err := c.table.RemoveUser(args[0], int32(userID))
		if !err.IsOK() {
			return err
		}
		if !result.RoomDestroyed && result.HostChanged {
			if conn, ok := c.table.OnlineConnection(result.NewHostID); ok {
				conn.Send(wire.ClientBoundChangeHost{IsHost: true})
			}
		}
		return nil

	case "ban":
		if len(args) < 2 {
			return fmt.Errorf("usage: ban <id|ip> <target> [ttlSeconds] [reason...]")
		}
		var ttl time.Duration
		reason := ""
		if len(args) >= 3 {
			secs, convErr := strconv.ParseInt(args[2], 10, 64)
			if convErr == nil {
				ttl = time.Duration(secs) * time.Second
			}
		}
		if len(args) >= 4 {
			reason = strings.Join(args[3:], " ")
		}
		return c.sec.AddBan(security.BanType(args[0]), args[1], ttl, reason)

	case "unban":
		if len(args) < 2 {
			return fmt.Errorf("usage: unban <id|ip> <target>")
		}
		return c.sec.RemoveBan(security.BanType(args[0]), args[1])

	case "bans":
		for _, b := range c.sec.ListBans() {
			fmt.Fprintf(c.out, "%s %s reason=%q\n", b.Type, b.Target, b.Reason)
		}
		return nil

	case "blacklist":
		if len(args) < 1 {
			return fmt.Errorf("usage: blacklist <ip> [ttlSeconds]")
		}
		var ttl time.Duration
		if len(args) >= 2 {
			secs, convErr := strconv.ParseInt(args[1], 10, 64)
			if convErr == nil {
				ttl = time.Duration(secs) * time.Second
			}
		}
		return c.sec.AddBlacklistIP(args[0], ttl)

	case "unblacklist":
		if len(args) < 1 {
			return fmt.Errorf("usage: unblacklist <ip>")
		}
		return c.sec.RemoveBlacklistIP(args[0])

	case "contest":
		if len(args) < 2 {
			return fmt.Errorf("usage: contest <room> <on|off> [userId...]")
		}
		enabled := args[1] == "on"
		whitelist := make([]int32, 0, len(args)-2)
		for _, a := range args[2:] {
			id, convErr := strconv.ParseInt(a, 10, 32)
			if convErr != nil {
				return convErr
			}
			whitelist = append(whitelist, int32(id))
		}
		if err := c.table.SetContestMode(args[0], enabled, whitelist); !err.IsOK() {
			return err
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func formatHost(host *int32) string {
	if host == nil {
		return "-"
	}
	return strconv.FormatInt(int64(*host), 10)
}
