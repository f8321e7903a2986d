package server

import "github.com/prometheus/client_golang/prometheus"

type collector struct {
	s *Server

	sentData   *prometheus.Desc
	recvData   *prometheus.Desc
	sentPkts   *prometheus.Desc
	recvPkts   *prometheus.Desc
	clients    *prometheus.Desc
	maxClients *prometheus.Desc
}

// NewCollector exports the traffic totals and client counts of s
func NewCollector(s *Server, namespace string) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}

	return &collector{
		s:          s,
		sentData:   desc("sent_bytes_total", "Bytes sent over UDP."),
		recvData:   desc("received_bytes_total", "Bytes received over UDP."),
		sentPkts:   desc("sent_packets_total", "Datagrams sent."),
		recvPkts:   desc("received_packets_total", "Datagrams received."),
		clients:    desc("clients", "Connected clients."),
		maxClients: desc("max_clients", "Client slots."),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sentData
	ch <- c.recvData
	ch <- c.sentPkts
	ch <- c.recvPkts
	ch <- c.clients
	ch <- c.maxClients
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	st := c.s.Stats()

	ch <- prometheus.MustNewConstMetric(c.sentData, prometheus.CounterValue, float64(st.SentData))
	ch <- prometheus.MustNewConstMetric(c.recvData, prometheus.CounterValue, float64(st.ReceivedData))
	ch <- prometheus.MustNewConstMetric(c.sentPkts, prometheus.CounterValue, float64(st.SentPackets))
	ch <- prometheus.MustNewConstMetric(c.recvPkts, prometheus.CounterValue, float64(st.ReceivedPackets))
	ch <- prometheus.MustNewConstMetric(c.clients, prometheus.GaugeValue, float64(c.s.ClientsCount()))
	ch <- prometheus.MustNewConstMetric(c.maxClients, prometheus.GaugeValue, float64(c.s.MaxClients()))
}
