// Package mqtt provides MQTT client connectivity for the Tasmota discovery
// service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection of this service
//
// Tasmota devices and this service meet on a shared broker:
//
//	Tasmota devices ↔ MQTT Broker ↔ tasmota-discovery
//
// Retry, reconnect and QoS live here and nowhere else; the discovery core
// treats publishing as fire-and-forget.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDevices("stat"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(mqtt.Topics{}.Device("cmnd", "kitchen-plug", "STATUS"), []byte("11"), 1, false)
package mqtt
