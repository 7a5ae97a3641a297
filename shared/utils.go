// Package shared provides utility functions used across the mission
// dispatcher. This file keeps the teacher's network-discovery and
// safe-resource-cleanup helpers; the robot-type factory registry
// (AddRobotType/ROBOT_FACTORY) is dropped because VDA5050 robots are not
// self-registering hardware plugins — they are rows the Store already
// knows about, identified by name (see model.Robot).
package shared

import (
	"net"
	"reflect"
	"sync"
)

// GetLocalIPs discovers and returns all local IPv4 addresses of the
// server, used only for the startup banner (matching the teacher's
// main.go "Server is running on the following IPs" log).
func GetLocalIPs() []string {
	var ips []string

	interfaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}

			ips = append(ips, ip.String())
		}
	}

	return ips
}

// channelCloseMutex protects against concurrent channel close operations.
var channelCloseMutex sync.Mutex

// SafeClose safely closes various types of resources without panicking:
// objects with a Close() method, channels (via reflection), or nil.
func SafeClose(closer interface{}) {
	if closer == nil {
		return
	}

	if c, ok := closer.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			Debugf("error closing resource: %v", err)
		}
		return
	}

	SafeCloseChannel(closer)
}

// SafeCloseChannel safely closes a channel without panicking on an
// already-closed channel.
func SafeCloseChannel(ch interface{}) {
	if ch == nil {
		return
	}

	val := reflect.ValueOf(ch)
	if val.Kind() != reflect.Chan {
		Debugf("SafeCloseChannel: not a channel, type: %T", ch)
		return
	}

	channelCloseMutex.Lock()
	defer channelCloseMutex.Unlock()

	if !isChannelClosed(val) {
		val.Close()
	}
}

// isChannelClosed checks if a channel is closed using a non-blocking
// reflect.Select receive; a value pending in the channel is received and
// dropped by the check.
func isChannelClosed(ch reflect.Value) bool {
	if ch.Kind() != reflect.Chan {
		return true
	}

	chosen, _, ok := reflect.Select([]reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: ch},
		{Dir: reflect.SelectDefault},
	})

	return chosen == 0 && !ok
}
