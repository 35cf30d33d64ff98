// Package config watches the loaded configuration file and fans changes out
// to subscribers.
//
// A subscriber is either a plain ChangeHandler or a Reloadable component
// wrapped in a ReloadableSubscriber, which decodes one viper key into a
// target before handing it over:
//
//	v := viper.New()
//	v.SetConfigFile("configs/legalstudy-bootstrap.yaml")
//	_ = v.ReadInConfig()
//
//	w := config.NewWatcher(v, config.WithDebounce(500*time.Millisecond))
//	w.Subscribe("subsystems", config.NewReloadableSubscriber(reloader, "subsystems", &sections).Handler())
//	w.Start()
//	defer w.Stop()
//
// Editors often emit several write events per save; handlers run once per
// debounce window.
package config
