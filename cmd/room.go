package cmd

import (
	"fmt"
	"time"

	"github.com/BioHazard786/Warpcast/internal/adaptor"
	"github.com/BioHazard786/Warpcast/internal/ui"
	"github.com/spf13/cobra"
)

const roomReplyTimeout = 10 * time.Second

var flagRoomStream string

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Manage conference rooms",
}

var roomJoinCmd = &cobra.Command{
	Use:   "join <room>",
	Short: "Join a room and wait for its notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd, args[0])
	},
}

var roomLeaveCmd = &cobra.Command{
	Use:   "leave <room>",
	Short: "Leave a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roomRequest(cmd, args[0], "leaveFromRoom", "leavedFromRoom", func(c *ConnectionContext) error {
			return c.Session.LeaveFromRoom(args[0])
		})
	},
}

var roomInfoCmd = &cobra.Command{
	Use:   "info <room>",
	Short: "Show the streams in a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roomRequest(cmd, args[0], "getRoomInfo", "roomInformation", func(c *ConnectionContext) error {
			return c.Session.GetRoomInfo(args[0], flagRoomStream)
		})
	},
}

func joinRoom(cmd *cobra.Command, room string) error {
	ctx := cmd.Context()

	var conn *ConnectionContext
	monitor := ui.NewMonitor(fmt.Sprintf("%s Room %s", ui.IconRoom, room), lazySnapshot(&conn))

	conn, err := connect(ctx, SessionOptions{Callbacks: monitorCallbacks(monitor, nil)})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Session.JoinRoom(room, flagRoomStream); err != nil {
		return adaptor.NewError("join room", err)
	}
	return runMonitored(ctx, conn, monitor, func() {
		conn.Session.LeaveFromRoom(room)
	})
}

// roomRequest sends one room command and waits for the notification that
// answers it.
func roomRequest(cmd *cobra.Command, room, op, reply string, send func(*ConnectionContext) error) error {
	ctx := cmd.Context()

	replies := make(chan map[string]any, 1)
	failures := make(chan string, 1)
	callbacks := adaptor.CallbackFuncs{
		Notification: func(definition string, payload any) {
			if definition != reply {
				return
			}
			p, _ := payload.(map[string]any)
			select {
			case replies <- p:
			default:
			}
		},
		Error: func(kind string, _ any) {
			select {
			case failures <- kind:
			default:
			}
		},
	}

	conn, err := connect(ctx, SessionOptions{Callbacks: callbacks})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := send(conn); err != nil {
		return adaptor.NewError(op, err)
	}

	sp := ui.RunSpinner(ui.SpinnerWaiting, "Waiting for the server...")
	select {
	case p := <-replies:
		sp.Stop()
		if reply == "roomInformation" {
			info := ui.RoomInfoFromPayload(p)
			if info.Room == "" {
				info.Room = room
			}
			fmt.Println(info.View())
			return nil
		}
		ui.PrintSuccessf("%s done for room %s", op, room)
		return nil
	case kind := <-failures:
		sp.Error("Server rejected the request")
		return adaptor.NewError(op, fmt.Errorf("server error: %s", kind))
	case <-time.After(roomReplyTimeout):
		sp.Error("No reply")
		return adaptor.NewError(op, fmt.Errorf("no %s reply within %s", reply, roomReplyTimeout))
	case <-conn.Session.Done():
		sp.Error("Session closed")
		return conn.Wait()
	case <-ctx.Done():
		sp.Stop()
		return nil
	}
}

func init() {
	rootCmd.AddCommand(roomCmd)
	roomCmd.AddCommand(roomJoinCmd, roomLeaveCmd, roomInfoCmd)

	roomJoinCmd.Flags().StringVar(&flagRoomStream, "stream", "", "Stream id to publish into the room")
	roomInfoCmd.Flags().StringVar(&flagRoomStream, "stream", "", "Own stream id to exclude from the listing")
}
