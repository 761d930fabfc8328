package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
	"github.com/ubaish01/commune-backend/internal/domain"
)

// consumeParams is the consume reply payload; mirrors what the client needs
// to build its receiving end.
type consumeParams struct {
	ID               string             `json:"id"`
	ProducerID       string             `json:"producerId"`
	Kind             core.MediaKind     `json:"kind"`
	RTPParameters    core.RTPParameters `json:"rtpParameters"`
	ServerConsumerID string             `json:"serverConsumerId"`
}

func (ctl *SignalWSController) handleProduce(
	connID domain.ConnID,
	conn core.SignalConnection,
	data []byte,
) {
	type producePayload struct {
		Type          string             `json:"type"`
		CID           uint64             `json:"cid"`
		Kind          core.MediaKind     `json:"kind"`
		RTPParameters core.RTPParameters `json:"rtpParameters"`
	}
	var p producePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad transport-produce payload")
		return
	}

	transport, err := ctl.Registry.SendTransport(connID)
	if err != nil {
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	ctx, cancel := ctl.mediaCtx()
	defer cancel()
	producer, err := transport.Produce(ctx, p.Kind, p.RTPParameters)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("produce")
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}
	producer.OnTransportClose(func() {
		log.Debug().Str("module", "signal").Str("producer", producer.ID()).Msg("transport for producer closed")
	})

	if err := ctl.Registry.AddProducer(connID, producer); err != nil {
		producer.Close()
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	details, roomName, err := ctl.Registry.PeerDetails(connID)
	if err != nil {
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	// Other peers learn about the stream right away; the producing client
	// learns whether there is anything worth consuming in return.
	ctl.Broadcast.NotifyRoom(roomName, producer.ID(), details.Name, connID)
	producersExist := len(ctl.Registry.OtherProducers(roomName, connID)) > 0

	log.Info().Str("module", "signal").Str("conn", string(connID)).
		Str("producer", producer.ID()).Str("kind", string(p.Kind)).Msg("producer registered")

	resp := struct {
		ID             string `json:"id"`
		ProducersExist bool   `json:"producersExist"`
	}{
		ID:             producer.ID(),
		ProducersExist: producersExist,
	}
	ctl.sendReply(conn, p.CID, resp)
}

type paramsReply struct {
	Params any `json:"params"`
}

func (ctl *SignalWSController) handleConsume(
	connID domain.ConnID,
	conn core.SignalConnection,
	data []byte,
) {
	type consumePayload struct {
		Type                      string               `json:"type"`
		CID                       uint64               `json:"cid"`
		RTPCapabilities           core.RTPCapabilities `json:"rtpCapabilities"`
		RemoteProducerID          string               `json:"remoteProducerId"`
		ServerConsumerTransportID string               `json:"serverConsumerTransportId"`
	}
	var p consumePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad consume payload")
		return
	}

	router, _, err := ctl.Registry.RouterFor(connID)
	if err != nil {
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	transport, ok := ctl.Registry.RecvTransport(connID, p.ServerConsumerTransportID)
	if !ok {
		ctl.sendReply(conn, p.CID, paramsReply{Params: errorPayload{Error: "consumer transport not found"}})
		return
	}

	// Incompatible capabilities are dropped without a reply. Documented
	// policy: the client falls back to its next get-producers query.
	if !router.CanConsume(p.RemoteProducerID, p.RTPCapabilities) {
		log.Warn().Str("module", "signal").Str("conn", string(connID)).
			Str("producer", p.RemoteProducerID).Msg("cannot consume, dropping request")
		return
	}

	ctx, cancel := ctl.mediaCtx()
	defer cancel()
	consumer, err := transport.Consume(ctx, p.RemoteProducerID, p.RTPCapabilities, true)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("consume")
		ctl.sendReply(conn, p.CID, paramsReply{Params: errorPayload{Error: err.Error()}})
		return
	}
	if consumer == nil {
		ctl.sendReply(conn, p.CID, paramsReply{Params: errorPayload{Error: "consumer not created"}})
		return
	}

	if err := ctl.Registry.AddConsumer(connID, consumer); err != nil {
		consumer.Close()
		ctl.sendReply(conn, p.CID, paramsReply{Params: errorPayload{Error: err.Error()}})
		return
	}

	// The only path that removes a consumer outside full teardown: its
	// upstream producer going away. Tell the client, then close and remove
	// the consumer with its paired receive transport, exactly once. Wired
	// after AddConsumer so the relay always finds the registered pair.
	remoteProducerID := p.RemoteProducerID
	transportID := transport.ID()
	consumer.OnProducerClose(func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).
			Str("producer", remoteProducerID).Msg("producer of consumer closed")
		ctl.sendEvent(conn, producerClosedEvent{Type: evtProducerClosed, RemoteProducerID: remoteProducerID})

		c, t, ok := ctl.Registry.RemoveConsumerPair(consumer.ID(), transportID)
		if !ok {
			return
		}
		if t != nil {
			t.Close()
		}
		c.Close()
	})

	log.Info().Str("module", "signal").Str("conn", string(connID)).
		Str("consumer", consumer.ID()).Str("producer", remoteProducerID).Msg("consumer registered")

	ctl.sendReply(conn, p.CID, paramsReply{Params: consumeParams{
		ID:               consumer.ID(),
		ProducerID:       remoteProducerID,
		Kind:             consumer.Kind(),
		RTPParameters:    consumer.RTPParameters(),
		ServerConsumerID: consumer.ID(),
	}})
}

// handleConsumerResume unpauses a consumer. A missing id is a silent no-op.
func (ctl *SignalWSController) handleConsumerResume(connID domain.ConnID, data []byte) {
	type resumePayload struct {
		Type             string `json:"type"`
		ServerConsumerID string `json:"serverConsumerId"`
	}
	var p resumePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad consumer-resume payload")
		return
	}

	consumer, ok := ctl.Registry.ConsumerByID(p.ServerConsumerID)
	if !ok {
		return
	}
	if err := consumer.Resume(); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).
			Str("consumer", p.ServerConsumerID).Msg("consumer resume")
	}
}
