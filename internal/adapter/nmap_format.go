package adapter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"
)

const hostSeparator = "----------------------------------------------------"

// csvHeader is the column layout of the machine-readable summary
var csvHeader = []string{
	"host", "hostname", "hostname_type", "protocol", "port",
	"name", "state", "product", "extrainfo", "reason", "version",
}

// splitArguments turns a profile string into argv tokens
func splitArguments(profile string) []string {
	return strings.Fields(profile)
}

// FormatReport renders hosts, protocols and ports as the plain text report.
// Hosts and protocols keep nmap's order; ports ascend within a protocol.
func FormatReport(result *nmap.Run) string {
	var b strings.Builder

	for _, host := range result.Hosts {
		fmt.Fprintf(&b, "%s\n", hostSeparator)
		fmt.Fprintf(&b, "Host : %s (%s)\n", hostAddress(host), hostName(host))
		fmt.Fprintf(&b, "State : %s\n", host.Status.State)

		for _, proto := range groupPorts(host.Ports) {
			b.WriteString("----------\n")
			fmt.Fprintf(&b, "Protocol : %s\n", proto.name)

			for _, port := range proto.ports {
				fmt.Fprintf(&b, "port : %d\tstate : %s\tname : %s\tproduct : %s %s %s\n",
					port.ID, port.State.State, port.Service.Name,
					port.Service.Product, port.Service.Version, port.Service.ExtraInfo)

				if len(port.Scripts) > 0 {
					b.WriteString("Script output:\n")
					for _, script := range port.Scripts {
						fmt.Fprintf(&b, "  %s:\n%s\n", script.ID, script.Output)
					}
				}
			}
		}
	}

	return b.String()
}

// CSVSummary renders the semicolon separated summary, one row per host, hostname and port
func CSVSummary(result *nmap.Run) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, host := range result.Hosts {
		addr := hostAddress(host)
		names := host.Hostnames
		if len(names) == 0 {
			names = []nmap.Hostname{{}}
		}

		for _, proto := range groupPorts(host.Ports) {
			for _, port := range proto.ports {
				for _, hn := range names {
					row := []string{
						addr, hn.Name, hn.Type, proto.name, strconv.Itoa(int(port.ID)),
						port.Service.Name, port.State.State, port.Service.Product,
						port.Service.ExtraInfo, port.State.Reason, port.Service.Version,
					}
					if err := w.Write(row); err != nil {
						return "", fmt.Errorf("write csv row: %w", err)
					}
				}
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

type protocolPorts struct {
	name  string
	ports []nmap.Port
}

// groupPorts buckets ports by protocol in first-seen order, sorting each bucket by port number
func groupPorts(ports []nmap.Port) []protocolPorts {
	var groups []protocolPorts
	index := make(map[string]int)

	for _, port := range ports {
		i, ok := index[port.Protocol]
		if !ok {
			i = len(groups)
			index[port.Protocol] = i
			groups = append(groups, protocolPorts{name: port.Protocol})
		}
		groups[i].ports = append(groups[i].ports, port)
	}

	for i := range groups {
		sort.SliceStable(groups[i].ports, func(a, b int) bool {
			return groups[i].ports[a].ID < groups[i].ports[b].ID
		})
	}
	return groups
}

// hostAddress prefers IPv4, then IPv6, then whatever nmap reported first
func hostAddress(host nmap.Host) string {
	for _, want := range []string{"ipv4", "ipv6"} {
		for _, addr := range host.Addresses {
			if addr.AddrType == want {
				return addr.Addr
			}
		}
	}
	if len(host.Addresses) > 0 {
		return host.Addresses[0].Addr
	}
	return ""
}

// hostName prefers the name the operator typed, then the PTR record
func hostName(host nmap.Host) string {
	for _, hn := range host.Hostnames {
		if hn.Type == "user" {
			return hn.Name
		}
	}
	if len(host.Hostnames) > 0 {
		return host.Hostnames[0].Name
	}
	return ""
}
