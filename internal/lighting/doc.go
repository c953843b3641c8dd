// Package lighting drives the stage light through its MQTT bridge.
//
// A light setting is a State, a closed union of two variants:
//
//   - Temperature: white light at a colour temperature (kelvin) and brightness
//   - Color: a hue/saturation colour at a brightness
//
// The Client publishes set commands to showctl/command/lighting/{bulb} and
// tracks the bulb's last reported state from showctl/state/lighting/{bulb}.
//
// # Usage
//
//	bulb, err := lighting.NewClient(mqttClient, "stage-bulb", log)
//	if err != nil {
//	    return err
//	}
//	err = bulb.Set(ctx, lighting.Color{Hue: 180, Saturation: 100, Brightness: 100})
package lighting
