package bonjour

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
	log "github.com/sirupsen/logrus"
)

var bonjourServers []*zeroconf.Server

func findInterfaceByAddress(targetIP string) ([]net.Interface, error) {
	if targetIP == "" {
		return nil, nil
	}
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, err
		}

		for _, addr := range addrs {
			switch v := addr.(type) {
			case *net.IPNet:
				if v.IP.String() == targetIP {
					return []net.Interface{iface}, nil
				}
			}
		}
	}

	return nil, fmt.Errorf("no interface found with IP address: %s", targetIP)
}

func getLocalIPForDefaultGateway() (string, error) {
	// Choose a public IP (like Google DNS 8.8.8.8) to determine the appropriate interface.
	// No actual connection or data sending is done.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP.String(), nil
}

func getNonLoopbackIPAddresses() ([]string, error) {
	var ips []string

	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, err
		}

		for _, addr := range addrs {
			switch v := addr.(type) {
			case *net.IPNet:
				if ipv4 := v.IP.To4(); ipv4 != nil && !ipv4.IsLoopback() {
					ips = append(ips, ipv4.String())
				}
			}
		}
	}

	return ips, nil
}

// Advertise publishes the stats endpoint listening on listenAddr over
// mDNS, both as a kvfs instance and as a plain HTTP service.
func Advertise(listenAddr string, hostname string, svcName string, drivers []string) error {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	ifaces, err := findInterfaceByAddress(host)
	if err != nil {
		log.Infof("findInterfaceByAddress failed: %v", err)
	}

	ips := []string{host}
	if host == "" {
		if ip, err := getLocalIPForDefaultGateway(); err == nil {
			ips = []string{ip}
		} else {
			ips, _ = getNonLoopbackIPAddresses()
		}
	}

	txt := []string{"path=/", "metrics=/metrics"}
	if len(drivers) > 0 {
		txt = append(txt, "drivers="+strings.Join(drivers, ","))
	}

	s, err := zeroconf.RegisterProxy(hostname, "_kvfs._tcp", ".local", port, svcName, ips, txt, ifaces)
	if err != nil {
		return err
	}
	bonjourServers = append(bonjourServers, s)

	s, err = zeroconf.RegisterProxy(hostname, "_http._tcp", ".local", port, svcName, ips, []string{"path=/metrics"}, ifaces)
	if err != nil {
		Shutdown()
		return err
	}
	bonjourServers = append(bonjourServers, s)

	log.Infof("advertising %s on %v port %d", svcName, ips, port)
	return nil
}

func Shutdown() {
	for _, s := range bonjourServers {
		s.Shutdown()
	}
	bonjourServers = nil
}
