package reporter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type SyslogSender interface {
	SendRFC5424Timeout(appName string, structuredData string, message string, timeout time.Duration) error
}

type SyslogClient struct {
	addr string
}

func NewSyslogClient(addr string) *SyslogClient {
	return &SyslogClient{addr: addr}
}

func (c *SyslogClient) SendRFC5424Timeout(appName string, structuredData string, message string, timeout time.Duration) error {
	var conn net.Conn
	var err error
	if timeout > 0 {
		conn, err = net.DialTimeout("tcp", c.addr, timeout)
	} else {
		conn, err = net.Dial("tcp", c.addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "-"
	}

	pri := 132 // local0.warning
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if appName == "" {
		appName = DefaultAppName
	}

	line := fmt.Sprintf("<%d>1 %s %s %s - - %s %s\n", pri, ts, sanitizeSyslogToken(host), sanitizeSyslogToken(appName), structuredData, strings.TrimSpace(message))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	return w.Flush()
}

// Notifier announces accepted reports to a syslog receiver.
type Notifier struct {
	sender      SyslogSender
	appName     string
	timeout     time.Duration
	fixedLabels map[string]string
}

func NewNotifier(sender SyslogSender, cfg NotifyConfig, fixedLabels map[string]string) *Notifier {
	return &Notifier{sender: sender, appName: cfg.AppName, timeout: cfg.Timeout, fixedLabels: fixedLabels}
}

func (n *Notifier) Notify(r HazardReport) error {
	if n == nil || n.sender == nil {
		return nil
	}
	labels := map[string]string{
		"report_id": r.ReportID,
		"entity":    r.Entity,
		"urgency":   UrgencyName(r.Urgency),
		"has_image": strconv.FormatBool(r.HasImage()),
	}
	for k, v := range n.fixedLabels {
		if _, ok := labels[k]; !ok {
			labels[k] = v
		}
	}
	payload, err := json.Marshal(map[string]string{
		"report_id":     r.ReportID,
		"timestamp":     r.CreatedAt.Format(TimestampLayout),
		"employee_id":   r.EmployeeID,
		"entity":        r.Entity,
		"specific_area": r.SpecificArea,
		"urgency":       r.Urgency,
		"description":   r.Description,
		"image_path":    r.ImagePath,
	})
	if err != nil {
		return err
	}
	return n.sender.SendRFC5424Timeout(n.appName, buildStructuredData("hazard", labels), string(payload), n.timeout)
}

func buildStructuredData(sdID string, kv map[string]string) string {
	if sdID == "" {
		sdID = "hazard"
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(sdID)
	preferredOrder := []string{"report_id", "entity", "urgency", "has_image", "env", "site"}
	seen := make(map[string]struct{}, len(kv))
	for _, k := range preferredOrder {
		v, ok := kv[k]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		seen[k] = struct{}{}
		writeSDParam(&b, k, v)
	}
	extraKeys := make([]string, 0, len(kv))
	for k, v := range kv {
		if _, ok := seen[k]; ok {
			continue
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		writeSDParam(&b, k, kv[k])
	}
	b.WriteString("]")
	return b.String()
}

func writeSDParam(b *strings.Builder, k string, v string) {
	b.WriteString(" ")
	b.WriteString(k)
	b.WriteString("=\"")
	b.WriteString(escapeSDParam(v))
	b.WriteString("\"")
}

func escapeSDParam(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "]", "\\]")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return v
}

func sanitizeSyslogToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
