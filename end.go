package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/HimbeerserverDE/peerhost/server"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// end disconnects all peers and releases everything the daemon opened.
// Any argument may be nil.
func end(s *server.Server, metrics *http.Server, bans *BanList, logFile io.Closer, log logrus.FieldLogger) error {
	var err error

	if s != nil {
		st := s.Stats()
		log.WithFields(logrus.Fields{
			"uptime":     Uptime(),
			"sent_bytes": st.SentData,
			"recv_bytes": st.ReceivedData,
			"sent_pkts":  st.SentPackets,
			"recv_pkts":  st.ReceivedPackets,
		}).Info("ending")

		err = multierr.Append(err, s.Close())
	}

	if metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = multierr.Append(err, metrics.Shutdown(ctx))
		cancel()
	}

	if bans != nil {
		err = multierr.Append(err, bans.Close())
	}

	if logFile != nil {
		err = multierr.Append(err, logFile.Close())
	}

	return err
}
