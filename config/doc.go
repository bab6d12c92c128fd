// Package config loads the configuration of a mediajoin element.
//
// A configuration names the element and its ports, the transform bound to it,
// the NATS connection and subnet wiring, metrics and retry settings. Files may be
// JSON or YAML and are merged in layers over the defaults:
//
//	loader := config.NewLoader()
//	loader.AddLayer("mediajoin.yaml")
//	loader.AddLayer("site.json") // overrides mediajoin.yaml
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// The merged document is checked against an embedded JSON schema before it is
// decoded, so unknown keys and wrongly typed values fail with the offending
// field named. Duration fields accept Go duration strings ("250ms") or integer
// nanoseconds. Environment variables prefixed MEDIAJOIN_ override the NATS
// connection settings after the files are merged.
//
// plugin_dirs lists directories searched, in order, for transform presets:
// one JSON or YAML file per preset naming a built-in transform and its params.
// The file stem becomes a transform name usable in transform.name.
//
// # Example
//
//	element:
//	  name: mixer
//	  discipline: pull
//	  pull_timeout: 40ms
//	  inputs:
//	    - {name: left, caps: "video/x-raw,format=GRAY8,width=640,height=480"}
//	    - {name: right, caps: "video/x-raw,format=GRAY8,width=640,height=480"}
//	  outputs:
//	    - {name: mix, caps: "video/x-raw,format=GRAY8,width=640,height=480"}
//	transform:
//	  name: mean
//	nats:
//	  urls: ["nats://localhost:4222"]
//	  subject_prefix: studio
//	subnet:
//	  inputs:  [{name: left, description: cam.left}, {name: right, description: cam.right}]
//	  outputs: [{name: mix, description: cam.mix}]
package config
