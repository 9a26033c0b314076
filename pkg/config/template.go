package config

// SampleConfig is the annotated configuration written by `docufs init`.
const SampleConfig = `# DocuFS configuration
#
# Every option can be overridden with an environment variable:
#   DOCUFS_<SECTION>_<KEY>, e.g. DOCUFS_LOGGING_LEVEL=DEBUG

logging:
  level: INFO        # DEBUG, INFO, WARN, ERROR
  format: text       # text, json
  output: stdout     # stdout, stderr, or a file path

metrics:
  enabled: false
  listen_addr: 127.0.0.1:9190

coordinator:
  listen_addr: 0.0.0.0:9090
  data_dir: .              # registry.dat, cache/, backups/
  heartbeat_interval: 10s
  heartbeat_grace: 60s
  control_timeout: 15s
  exec_enabled: false      # EXEC runs file content under /bin/sh; keep off
  exec_timeout: 30s

node:
  id: ss1
  coordinator_addr: 127.0.0.1:9090
  client_port: 9101
  control_port: 0          # 0 derives client_port + 1000
  data_dir: .              # storage/<id>/, backups/<id>/
  advertise_ip: ""         # empty: discover via UDP local-address probe
  stream_delay: 100ms
`
